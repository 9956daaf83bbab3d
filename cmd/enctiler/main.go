// Command enctiler converts S-57 nautical charts into MBTiles archives
// and serves their tiles over HTTP.
//
// Usage:
//
//	enctiler serve   [-c config.toml] [-l level]
//	enctiler convert [-c config.toml] [-l level]
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/beetlebugorg/enctiler/internal/config"
)

func usage() {
	fmt.Fprintf(os.Stderr, `enctiler - nautical chart tile pipeline

Usage:
  enctiler serve   [-c config.toml] [-l level]   serve tiles from packaged archives
  enctiler convert [-c config.toml] [-l level]   convert chart sources into archives

Flags:
  -c file    configuration file (TOML)
  -l level   log level (default: info)
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	command := os.Args[1]
	flags := flag.NewFlagSet(command, flag.ExitOnError)
	flags.Usage = usage
	configPath := flags.String("c", "", "set config `file`")
	logLevel := flags.String("l", "info", "set log level")
	flags.Parse(os.Args[2:])

	conf, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "enctiler: %v\n", err)
		os.Exit(1)
	}

	log, err := initLog(conf, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "enctiler: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case "serve":
		err = runServe(conf, log)
	case "convert":
		err = runConvert(conf, log)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "enctiler: unknown command %q\n", command)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

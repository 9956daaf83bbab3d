package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/shiena/ansicolor"
	"github.com/sirupsen/logrus"

	"github.com/beetlebugorg/enctiler/internal/config"
)

// initLog builds the logrus pipeline: nested formatter, optional dated
// log file, optional terminal output.
func initLog(conf *config.Config, level string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&nested.Formatter{
		HideKeys:        false,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	var writers []io.Writer
	if conf.Log.Dir != "" {
		if err := os.MkdirAll(conf.Log.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		name := filepath.Join(conf.Log.Dir, time.Now().Format("2006-01-02")+".log")
		file, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, file)
	}
	if conf.Log.Terminal || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	log.SetOutput(ansicolor.NewAnsiColorWriter(io.MultiWriter(writers...)))

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	return log, nil
}

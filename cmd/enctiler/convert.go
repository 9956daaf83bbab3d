package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/beetlebugorg/enctiler/internal/config"
	"github.com/beetlebugorg/enctiler/internal/convert"
)

// runConvert packages every chart source in the input directory into its
// own MBTiles archive. Per-chart failures are reported and skipped; only
// a missing input directory fails the whole run.
func runConvert(conf *config.Config, log *logrus.Logger) error {
	tools := convert.NewOGRToolchain(conf.Convert.OGRInfo, conf.Convert.OGR2OGR, conf.Convert.Tippecanoe)

	opts := convert.DefaultOptions()
	opts.InputDir = conf.Convert.InputDir
	opts.OutputDir = conf.Convert.OutputDir
	opts.WorkDir = conf.Convert.WorkDir
	opts.MinZoom = conf.Convert.MinZoom
	opts.MaxZoom = conf.Convert.MaxZoom
	opts.Workers = conf.Convert.Workers

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	result, err := convert.NewRunner(tools, opts, log).Run(ctx)
	if err != nil {
		return err
	}

	for _, skip := range result.Skipped {
		if skip.Layer != "" {
			log.Warnf("skipped layer %s of chart %s: %s", skip.Layer, skip.Chart, skip.Reason)
		} else {
			log.Warnf("skipped chart %s: %s", skip.Chart, skip.Reason)
		}
	}
	for _, chart := range result.Succeeded {
		log.Infof("converted %s", chart)
	}
	return nil
}

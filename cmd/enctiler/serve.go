package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/beetlebugorg/enctiler/internal/config"
	"github.com/beetlebugorg/enctiler/internal/registry"
	"github.com/beetlebugorg/enctiler/internal/server"
)

// runServe loads the chart registry and serves tiles until interrupted.
// The registry is built fully before the listener starts: load, then
// serve. An empty registry still serves its diagnostics.
func runServe(conf *config.Config, log *logrus.Logger) error {
	reg, err := registry.Load(conf.Server.ChartDir, conf.Server.LegacyArchive, log)
	if err != nil {
		return err
	}
	defer reg.Close()

	if reg.Len() == 0 {
		log.Warn("registry is empty, serving diagnostics only")
	}

	srv := &http.Server{
		Addr:    conf.Server.Addr,
		Handler: server.New(reg, log).Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("serving %d chart(s) on %s", reg.Len(), conf.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

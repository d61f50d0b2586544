package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/v0xg/deskreplay/internal/playback"
	"github.com/v0xg/deskreplay/internal/sequence"
	"github.com/v0xg/deskreplay/internal/server"
)

var (
	serveAddr     string
	serveBrowser  bool
	serveSequence string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the playback control API and event stream over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: from config)")
	serveCmd.Flags().BoolVar(&serveBrowser, "browser", false, "Inject into a browser instead of a dry-run target")
	serveCmd.Flags().StringVar(&serveSequence, "sequence", "", "Sequence file to load at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, _, closePort, err := openPort(ctx, cfg, !serveBrowser, logger)
	if err != nil {
		return err
	}
	defer closePort()

	engine := playback.New(port, engineOptions(cfg, logger))
	if serveSequence != "" {
		seq, err := sequence.Load(serveSequence)
		if err != nil {
			return err
		}
		if err := engine.Load(seq); err != nil {
			return err
		}
	}

	router := server.NewRouter(engine, server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		DefaultSpeed:   cfg.Playback.Speed,
		DefaultLoops:   cfg.Playback.Loops,
		EventBuffer:    cfg.Playback.EventBuffer,
		Logger:         logger,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("deskreplay server starting", "addr", cfg.Server.Addr, "dry_run", !serveBrowser)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if err := engine.Stop(); err == nil {
			logger.Info("active playback stopped for shutdown")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("deskreplay server stopped")
	return err
}

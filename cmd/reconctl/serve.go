package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/reconctl/internal/mcpserver"
	"github.com/danmuck/reconctl/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var httpAddr string
	var noStdio bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog as tools over stdio, and optionally over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http") {
				cfg.HTTPAddr = httpAddr
			}
			if noStdio && cfg.HTTPAddr == "" {
				return errors.New("--no-stdio needs an http address")
			}

			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, rt, !noStdio)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "also serve HTTP on this address (overrides http_addr)")
	cmd.Flags().BoolVar(&noStdio, "no-stdio", false, "serve HTTP only")
	return cmd
}

func serve(ctx context.Context, rt *runtime, stdio bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info().
		Bool("stdio", stdio).
		Str("http", rt.cfg.HTTPAddr).
		Bool("raw", rt.raw != nil).
		Msg("reconctl serving")

	var httpDone chan error
	if rt.cfg.HTTPAddr != "" {
		// stdout belongs to the tool protocol
		gin.SetMode(gin.ReleaseMode)
		gin.DefaultWriter = os.Stderr
		srv := server.New(server.Options{
			Addr:        rt.cfg.HTTPAddr,
			CorsOrigins: rt.cfg.CorsOrigins,
			Token:       rt.cfg.HTTPToken,
		}, rt.dispatcher, rt.raw)
		httpDone = make(chan error, 1)
		go func() {
			err := srv.Serve(ctx)
			if err != nil {
				log.Error().Err(err).Str("addr", rt.cfg.HTTPAddr).Msg("http server failed")
			}
			httpDone <- err
		}()
	}

	if !stdio {
		return <-httpDone
	}

	// returns on stdin close or SIGINT/SIGTERM
	err := mcpserver.Serve(mcpserver.New(rt.dispatcher, rt.raw, Version))
	cancel()
	if httpDone != nil {
		if httpErr := <-httpDone; err == nil {
			err = httpErr
		}
	}
	return err
}

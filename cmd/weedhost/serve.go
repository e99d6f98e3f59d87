package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/danmuck/weedcore/internal/admin"
	"github.com/danmuck/weedcore/internal/observability"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load plugins and serve the admin HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "admin listen address (overrides admin_addr)")
	return cmd
}

func serve(ctx context.Context, opts *options, addr string) error {
	cfg := opts.cfg
	logger := observability.Logger(cfg.Name)
	if addr != "" {
		cfg.AdminAddr = addr
	}

	rt := opts.load()
	srv := admin.New(cfg.Name, cfg.AdminAddr, cfg.CorsOrigins, rt)
	if err := srv.Listen(); err != nil {
		_ = rt.Close()
		return err
	}
	logger.Info().
		Str("name", cfg.Name).
		Str("addr", srv.Addr).
		Int("filters", len(rt.Filters())).
		Msg("host ready")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		return rt.Close()
	})
	err := g.Wait()
	logger.Info().Err(err).Msg("host stopped")
	return err
}

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

	"clientpilot/internal/app"
	"clientpilot/internal/server"
	"clientpilot/internal/telemetry"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, func(ctx context.Context, a *app.App) error {
				cfg := a.Config
				if addr != "" {
					cfg.Server.Addr = addr
				}
				if a.Tokens.Secret == "" {
					return fmt.Errorf("auth.jwt_secret (or CLIENTPILOT_JWT_SECRET) is required to serve")
				}
				shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
					Endpoint:    cfg.Telemetry.OTLPEndpoint,
					Insecure:    cfg.Telemetry.Insecure,
					ServiceName: cfg.Telemetry.ServiceName,
					Version:     version,
				})
				if err != nil {
					return err
				}
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := shutdownTelemetry(sctx); err != nil {
						a.Logger.Warn("telemetry shutdown", "error", err)
					}
				}()

				handler, err := server.New(server.Config{
					Engine:      a.Engine,
					Auth:        a.Auth,
					Tokens:      a.Tokens,
					BasePath:    cfg.Server.BasePath,
					CORSOrigins: cfg.Server.CORSOrigins,
					Logger:      a.Logger,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{
					Addr:              cfg.Server.Addr,
					Handler:           handler,
					ReadHeaderTimeout: 10 * time.Second,
				}

				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					a.Logger.Info("serving api",
						"addr", cfg.Server.Addr,
						"base_path", cfg.Server.BasePath,
						"ai_backend", a.Backend.Name(),
						"version", version)
					fmt.Fprintf(os.Stderr, "ClientPilot API on http://%s%s (OpenAPI at %s/openapi.json, docs at %s/docs)\n",
						cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath, cfg.Server.BasePath)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					a.Logger.Info("shutting down")
					return srv.Shutdown(sctx)
				})
				return g.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

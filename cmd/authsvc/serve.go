package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/mkrupp/homecase-auth/internal/infra/logging"
	"github.com/mkrupp/homecase-auth/internal/infra/store"
	"github.com/mkrupp/homecase-auth/internal/infra/transport/http"
	"github.com/mkrupp/homecase-auth/internal/repo/user"
	"github.com/mkrupp/homecase-auth/internal/session"
	"github.com/mkrupp/homecase-auth/internal/svc/authsvc"
)

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			return serve(cmd.Context(), cfg, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply schema migrations before serving")

	return cmd
}

func serve(ctx context.Context, cfg Config, migrate bool) (err error) {
	log := logging.GetLogger("cmd.authsvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "serve failed", "error", err)
		} else {
			log.InfoContext(ctx, "shutdown")
		}
	}()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if migrate {
		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate store: %w", err)
		}
	}

	sessions, err := session.NewManager(cfg.Session)
	if err != nil {
		return fmt.Errorf("new session manager: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	//nolint:exhaustruct
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hasher, err := authsvc.NewArgon2idHasher(cfg.Hash)
	if err != nil {
		return fmt.Errorf("new password hasher: %w", err)
	}

	authSvc, err := authsvc.NewAuthService(hasher, authsvc.NewMetrics(registry))
	if err != nil {
		return fmt.Errorf("new auth service: %w", err)
	}

	httpTransport := authsvc.NewHTTPTransport(
		authSvc,
		st,
		user.SQLUserRepositoryFactory(),
		sessions,
		registry,
	)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

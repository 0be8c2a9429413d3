package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mkrupp/homecase-auth/internal/infra/config"
	"github.com/mkrupp/homecase-auth/internal/infra/logging"
	"github.com/mkrupp/homecase-auth/internal/infra/store"
	"github.com/mkrupp/homecase-auth/internal/infra/transport/http"
	"github.com/mkrupp/homecase-auth/internal/session"
	"github.com/mkrupp/homecase-auth/internal/svc/authsvc"
)

const (
	appName = "demo"
	svcName = "authsvc"
)

type Config struct {
	config.EnvConfig

	Log     logging.LoggerConfig     `envPrefix:"LOG_"`
	HTTP    http.HTTPTransportConfig `envPrefix:"HTTP_"`
	Store   store.StoreConfig        `envPrefix:"STORE_"`
	Session session.SessionConfig    `envPrefix:"SESSION_"`
	Hash    authsvc.HasherConfig     `envPrefix:"HASH_"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   svcName,
		Short: "Account registration, login and session identity service",
		Long: `authsvc registers accounts, authenticates logins and keeps the
current user in a signed session cookie.

Configuration is read from the environment, prefixed with DEMO_AUTHSVC_,
for example DEMO_AUTHSVC_STORE_DSN or DEMO_AUTHSVC_HTTP_SERVER_ADDR.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		serveCmd(),
		initDBCmd(),
	)

	return cmd
}

// loadConfig parses the environment and configures logging.
func loadConfig(ctx context.Context) (Config, error) {
	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	return cfg, nil
}

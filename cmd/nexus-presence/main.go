package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Prescott-Data/nexus-presence/gateway"
	"github.com/Prescott-Data/nexus-presence/gateway/telemetry"
	"github.com/Prescott-Data/nexus-presence/internal/account"
	"github.com/Prescott-Data/nexus-presence/internal/config"
	"github.com/Prescott-Data/nexus-presence/internal/server"
	"github.com/Prescott-Data/nexus-presence/internal/store"
)

var Version = "dev"

const banner = `
    ╭────────────────────────────────╮
    │                                │
    │        nexus-presence          │
    │   always-on gateway presence   │
    │                                │
    ╰────────────────────────────────╯
`

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "nexus-presence",
		Short:         "Keep one account's presence online on the gateway",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv(config.FileEnv), "Path to a TOML config file")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Connect and hold the session until interrupted (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "check-token",
		Short: "Validate the configured token against the API and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, os.LookupEnv)
			if err != nil {
				return err
			}
			user, err := newAccountClient(cfg).Validate(cmd.Context(), cfg.Token)
			if err != nil {
				return fmt.Errorf("token check failed: %w", err)
			}
			color.New(color.FgGreen).Print("✔ ")
			fmt.Printf("Token is valid for %s (%s)\n", user.DisplayName(), user.ID)
			return nil
		},
	})
	return root
}

func run(ctx context.Context, configPath string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	cfg, err := config.Load(configPath, os.LookupEnv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.Logging.Level)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// An invalid token would otherwise be retried forever.
	checkCtx, checkCancel := context.WithTimeout(ctx, 10*time.Second)
	user, err := newAccountClient(cfg, account.WithLogger(logger)).Validate(checkCtx, cfg.Token)
	checkCancel()
	if err != nil {
		if errors.Is(err, account.ErrInvalidToken) {
			return fmt.Errorf("invalid token: %w", err)
		}
		return fmt.Errorf("validating token: %w", err)
	}

	st, stateDesc, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("Failed to close session store", "error", err)
		}
	}()

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Account:  %s\n", user.DisplayName())
	green.Print("    ▶ ")
	fmt.Printf("Status:   %s\n", cfg.Presence.Status)
	green.Print("    ▶ ")
	fmt.Printf("Device:   %s\n", cfg.Presence.Device)
	green.Print("    ▶ ")
	fmt.Printf("State:    %s\n", stateDesc)
	green.Print("    ▶ ")
	fmt.Printf("Version:  %s\n", Version)
	fmt.Println()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer, map[string]string{"device": cfg.Presence.Device})
	client := gateway.New(cfg.Identity(),
		gateway.WithLogger(logger),
		gateway.WithMetrics(metrics),
		gateway.WithStore(st),
		gateway.WithGatewayURL(cfg.Gateway.URL),
		gateway.WithBackoffPolicy(cfg.BackoffPolicy()),
		gateway.WithTimeouts(cfg.Timeouts()),
		gateway.WithHeartbeatTimeoutMultiplier(cfg.Gateway.HeartbeatTimeoutMultiplier),
	)

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server.Port, client, telemetry.Handler(), logger.Slog())
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error(err, "Liveness server failed; continuing without it")
			}
		}()
	}

	logger.Info("Starting gateway client", "user", user.DisplayName(), "device", cfg.Presence.Device)
	err = client.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("Shutdown complete")
		return nil
	}
	return err
}

// tokenCheckRetry rides out brief API outages at startup. A rejected token
// is never retried.
var tokenCheckRetry = account.RetryPolicy{
	Retries:    2,
	MinDelay:   500 * time.Millisecond,
	MaxDelay:   2 * time.Second,
	RetryOn429: true,
}

func newAccountClient(cfg *config.Config, opts ...account.Option) *account.Client {
	opts = append([]account.Option{account.WithRetry(tokenCheckRetry)}, opts...)
	return account.New(cfg.Gateway.APIURL, opts...)
}

// openStore picks Redis when a URL is configured, the JSON file otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, string, error) {
	if cfg.State.RedisURL != "" {
		st, err := store.OpenRedis(ctx, cfg.State.RedisURL, cfg.State.RedisKey)
		if err != nil {
			return nil, "", fmt.Errorf("opening redis store: %w", err)
		}
		key := cfg.State.RedisKey
		if key == "" {
			key = store.DefaultRedisKey
		}
		return st, "redis key " + key, nil
	}
	st := store.OpenFile(cfg.State.Path)
	return st, st.Path(), nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tapkiosk/config"
	"tapkiosk/services"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	httpClient *http.Client
}

func newRootCmd() *cobra.Command {
	a := &app{httpClient: http.DefaultClient}

	rootCmd := &cobra.Command{
		Use:           "kiosk",
		Short:         "TapKiosk - point-of-sale client for the payment relay",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (env vars take precedence)")

	rootCmd.AddCommand(loginCmd(a))
	rootCmd.AddCommand(catalogCmd(a))
	rootCmd.AddCommand(terminalTokenCmd(a))
	rootCmd.AddCommand(sellCmd(a))

	return rootCmd
}

func (a *app) load() (*config.KioskConfig, *services.RelayClient, error) {
	cfg, err := config.LoadKioskConfig(a.configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, services.NewRelayClient(cfg.APIBaseURL, a.httpClient), nil
}

func limitsFrom(cfg *config.KioskConfig) services.CheckoutLimits {
	return services.CheckoutLimits{
		MinAmount:  cfg.MinAmount,
		MaxAmount:  cfg.MaxAmount,
		Currencies: cfg.SupportedCurrencies,
	}
}

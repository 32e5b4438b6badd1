package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/slack-go/slack"
	"github.com/spf13/cobra"

	"tapkiosk/models"
	"tapkiosk/services"
	"tapkiosk/utils"
)

func loginCmd(a *app) *cobra.Command {
	var redirectURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Connect a Stripe account and print its id",
		Long: `Prints the Connect authorization URL and waits for the browser to be
redirected back to REDIRECT_URI. Pass --redirect-url to use a redirect URL
that was received some other way.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, relay, err := a.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if redirectURL == "" {
				auth := services.NewAuthService(services.AuthOptions{
					AuthorizeURL: cfg.AuthorizeURL,
					ClientID:     cfg.ClientID,
					Scopes:       cfg.OAuthScopes,
					RedirectURI:  cfg.RedirectURI,
				})
				fmt.Fprintf(out, "Open this URL to connect your account:\n  %s\n", auth.AuthorizeURL())
				if redirectURL, err = auth.AwaitRedirect(cmd.Context()); err != nil {
					return err
				}
			}

			if oauthErr := utils.ExtractOAuthError(redirectURL); oauthErr != nil {
				return fmt.Errorf("authorization failed: %w", oauthErr)
			}

			inventory := services.NewInventoryService(relay, limitsFrom(cfg))
			acct, err := inventory.ResolveAccount(cmd.Context(), services.NavState{Code: utils.ExtractCode(redirectURL)})
			var loginErr *services.LoginError
			if errors.As(err, &loginErr) {
				return fmt.Errorf("login failed: %s (run login again to retry)", loginErr.Message())
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Connected account: %s\n", acct)
			return nil
		},
	}

	cmd.Flags().StringVar(&redirectURL, "redirect-url", "", "redirect URL carrying the authorization code")
	return cmd
}

func catalogCmd(a *app) *cobra.Command {
	var accountID, currency string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the account's active prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, relay, err := a.load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("currency") {
				currency = cfg.DefaultCurrency
			}

			inventory := services.NewInventoryService(relay, limitsFrom(cfg))
			catalog, err := inventory.Load(cmd.Context(), accountID)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PRICE\tPRODUCT\tAMOUNT")
			for _, p := range catalog.Prices {
				if currency != "" && !strings.EqualFold(p.Currency, currency) {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Product.Name, models.FormatAmount(p.UnitAmount, p.Currency))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "connected account id")
	cmd.Flags().StringVar(&currency, "currency", "", "only show prices in this currency (default DEFAULT_CURRENCY, empty for all)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func terminalTokenCmd(a *app) *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "terminal-token",
		Short: "Print a Terminal connection token secret for the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, relay, err := a.load()
			if err != nil {
				return err
			}
			secret, err := relay.ConnectionToken(cmd.Context(), accountID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "connected account id")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func sellCmd(a *app) *cobra.Command {
	var (
		accountID    string
		items        []string
		receiptPath  string
		slackReceipt bool
		settleMode   string
		manual       bool
	)

	cmd := &cobra.Command{
		Use:   "sell",
		Short: "Ring up items and take a payment",
		Example: `  kiosk sell --account acct_123 --item price_tea=2 --item price_cake
  kiosk sell --account acct_123 --item "price_tea=2, price_cake" --receipt receipt.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, relay, err := a.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var settler services.Settler
			switch settleMode {
			case "simulated":
				settler = services.SimulatedSettler{Delay: cfg.PaymentSettleDelay}
			case "intent":
				settler = services.IntentSettler{Relay: relay, Interval: cfg.SettlePollInterval}
			default:
				return fmt.Errorf("invalid --settle %q. Must be one of: simulated, intent", settleMode)
			}

			wanted, err := utils.ParseItems(items)
			if err != nil {
				return err
			}

			inventory := services.NewInventoryService(relay, limitsFrom(cfg))
			catalog, err := inventory.Load(ctx, accountID)
			if err != nil {
				return err
			}

			cart := &models.Cart{}
			for _, item := range wanted {
				price, ok := catalog.FindPrice(item.PriceID)
				if !ok {
					return fmt.Errorf("unknown or inactive price %s", item.PriceID)
				}
				cart.Add(price)
				cart.SetQuantity(price.ID, item.Quantity)
			}
			printCart(cmd, cart)

			params, err := inventory.Checkout(ctx, services.CheckoutRequest{AccountID: accountID, Cart: cart})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Payment intent %s created\n", params.PaymentIntentID)

			session := services.NewPaymentSession(*params, cfg.PaymentStartDelay, func(s models.PaymentStatus) {
				fmt.Fprintf(out, "Status: %s\n", s)
			})
			var status models.PaymentStatus
			if manual {
				status, err = session.Simulate(ctx, settler)
			} else {
				status, err = session.Run(ctx, settler)
			}
			if err != nil {
				return fmt.Errorf("payment %s: %w", status, err)
			}

			if receiptPath == "" && !slackReceipt {
				return nil
			}
			return sendReceipt(cmd, cfg.SlackBotToken, cfg.SlackChannelID, services.NewReceipt(*params, cart, time.Now()), receiptPath, slackReceipt)
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "connected account id")
	cmd.Flags().StringArrayVar(&items, "item", nil, "item to sell as PRICE[=QTY], repeatable")
	cmd.Flags().StringVar(&receiptPath, "receipt", "", "write a PDF receipt to this file")
	cmd.Flags().BoolVar(&slackReceipt, "slack-receipt", false, "upload the PDF receipt to SLACK_CHANNEL_ID")
	cmd.Flags().StringVar(&settleMode, "settle", "simulated", "how settlement is confirmed: simulated or intent")
	cmd.Flags().BoolVar(&manual, "now", false, "start processing immediately instead of after PAYMENT_START_DELAY")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func printCart(cmd *cobra.Command, cart *models.Cart) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tQTY\tAMOUNT")
	for _, line := range cart.Lines() {
		name := line.Price.ID
		if line.Price.Product != nil {
			name = line.Price.Product.Name
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", name, line.Quantity, models.FormatAmount(line.Amount(), line.Price.Currency))
	}
	fmt.Fprintf(tw, "TOTAL\t\t%s\n", models.FormatAmount(cart.Total(), cart.Currency()))
	tw.Flush()
}

func sendReceipt(cmd *cobra.Command, slackToken, channelID string, receipt services.Receipt, path string, upload bool) error {
	var slackClient *slack.Client
	if upload && slackToken != "" {
		slackClient = slack.New(slackToken)
	}
	receipts := services.NewReceiptService(slackClient, channelID)

	pdf, err := receipts.GeneratePDF(receipt)
	if err != nil {
		return err
	}
	if path != "" {
		if err := os.WriteFile(path, pdf, 0o644); err != nil {
			return fmt.Errorf("failed to write receipt: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Receipt written to %s\n", path)
	}
	if upload {
		if err := receipts.SendToSlack(cmd.Context(), receipt, pdf); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Receipt sent to Slack")
	}
	return nil
}

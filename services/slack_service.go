package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/slack-go/slack"

	"tapkiosk/models"
)

// Notifier announces sale events. Implementations must not fail the caller:
// delivery problems are logged and dropped.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string) {}

// SlackNotifier posts notifications to a single Slack channel.
type SlackNotifier struct {
	client    *slack.Client
	channelID string
	timeout   time.Duration
}

// NewSlackNotifier returns a NopNotifier when token or channel is missing.
func NewSlackNotifier(token, channelID string, options ...slack.Option) Notifier {
	if token == "" || channelID == "" {
		log.Printf("[Slack] Bot token or channel not set, notifications disabled")
		return NopNotifier{}
	}
	return &SlackNotifier{
		client:    slack.New(token, options...),
		channelID: channelID,
		timeout:   5 * time.Second,
	}
}

func (s *SlackNotifier) Notify(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, _, err := s.client.PostMessageContext(ctx, s.channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(BuildNotificationBlocks(text, time.Now())...),
	)
	if err != nil {
		log.Printf("[Slack] Error sending notification to %s: %v", s.channelID, err)
	}
}

// IntentCreatedMessage formats the notification for a new payment intent.
func IntentCreatedMessage(accountID string, pi *models.PaymentIntent, amount int64, currency string) string {
	return fmt.Sprintf("New sale on `%s`: *%s* (intent `%s`)", accountID, models.FormatAmount(amount, currency), pi.ID)
}

// IntentOutcomeMessage formats the notification for a settled payment intent.
func IntentOutcomeMessage(accountID string, pi *models.PaymentIntent, succeeded bool) string {
	if succeeded {
		return fmt.Sprintf(":white_check_mark: Payment of *%s* succeeded on `%s` (intent `%s`)",
			models.FormatAmount(pi.Amount, pi.Currency), accountID, pi.ID)
	}
	return fmt.Sprintf(":x: Payment of *%s* failed on `%s` (intent `%s`, status %s)",
		models.FormatAmount(pi.Amount, pi.Currency), accountID, pi.ID, pi.Status)
}

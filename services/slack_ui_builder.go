package services

import (
	"time"

	"github.com/slack-go/slack"
)

func newPlainTextBlock(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

func newMarkdownBlock(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

// BuildNotificationBlocks lays a notification out as a section followed by a
// context line with the time it was sent.
func BuildNotificationBlocks(text string, at time.Time) []slack.Block {
	section := slack.NewSectionBlock(newMarkdownBlock(text), nil, nil)
	footer := slack.NewContextBlock("", newPlainTextBlock("TapKiosk relay | "+at.UTC().Format(time.RFC1123)))
	return []slack.Block{section, footer}
}

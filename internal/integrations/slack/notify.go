// Package slacknotify posts session events to a Slack channel: a summary
// when a stage is committed, and the scheduled labeling-progress digest.
// Everything here is optional; with no bot token configured the notifier
// is nil and the session runs silently.
package slacknotify

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"
)

type Notifier struct {
	api       *slack.Client
	channelID string
}

// New returns a notifier, or nil when the token or channel is not
// configured.
func New(botToken, channelID string) *Notifier {
	if botToken == "" || channelID == "" {
		return nil
	}
	return &Notifier{api: slack.New(botToken), channelID: channelID}
}

// StageCommitted posts a one-line stage summary. Failures are logged and
// swallowed; notification must never fail an engine operation.
func (n *Notifier) StageCommitted(stage string, summary string) {
	msg := fmt.Sprintf("Labeling stage *%s* committed: %s", stage, summary)
	n.post(msg)
}

// ProgressDigest posts the scheduled remaining-work digest.
func (n *Notifier) ProgressDigest(stage string, total, labeled int) {
	msg := fmt.Sprintf(
		"Labeling progress on stage *%s*: %d of %d features decided (%d remaining).",
		stage, labeled, total, total-labeled,
	)
	n.post(msg)
}

func (n *Notifier) post(msg string) {
	_, _, err := n.api.PostMessage(n.channelID, slack.MsgOptionText(msg, false))
	if err != nil {
		log.Printf("slack post error: %v", err)
		return
	}
	log.Printf("slack notification posted channel=%s size=%d", n.channelID, len(msg))
}

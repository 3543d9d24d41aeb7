package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/williambergmann/timesheet/timesheet"
)

// SlackOption selects where messages go.
type SlackOption struct {
	// ReviewChannelID receives submissions, deletions and pay-period
	// confirmations, and owner messages when the owner has no Slack ID.
	ReviewChannelID string
}

// UserLookup resolves the Slack ID of an event's owner.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (timesheet.User, error)
}

type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Slack posts events to Slack: owner-facing events as a direct message,
// everything else to the review channel.
type Slack struct {
	client  poster
	users   UserLookup
	options SlackOption
}

func NewSlack(token string, users UserLookup, options SlackOption) *Slack {
	return &Slack{client: slack.New(token), users: users, options: options}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, e timesheet.Event) error {
	channelID, err := s.channelFor(ctx, e)
	if err != nil {
		return err
	}
	if channelID == "" {
		return nil
	}
	return s.postMessage(ctx, channelID, Message(e))
}

func (s *Slack) channelFor(ctx context.Context, e timesheet.Event) (string, error) {
	if !toOwner(e) || s.users == nil || e.UserID == "" {
		return s.options.ReviewChannelID, nil
	}
	u, err := s.users.GetUser(ctx, e.UserID)
	if errors.Is(err, timesheet.ErrNotFound) {
		return s.options.ReviewChannelID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up slack recipient: %w", err)
	}
	if u.SlackID == "" {
		return s.options.ReviewChannelID, nil
	}
	return u.SlackID, nil
}

func (s *Slack) postMessage(ctx context.Context, channelID, message string) error {
	_, _, err := s.client.PostMessageContext(ctx,
		channelID,
		slack.MsgOptionText(message, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("failed to post message to Slack: %w", err)
	}
	return nil
}

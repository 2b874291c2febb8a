// Package notify delivers short notifications to staff accounts.
package notify

import (
	"context"
	"errors"

	"github.com/doublejdg/stockroom/internal/feed"
	"github.com/doublejdg/stockroom/internal/model"
)

// Message is a notification title and body with optional data.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notifier delivers a message to one account.
type Notifier interface {
	Notify(ctx context.Context, to model.Account, msg Message) error
}

// Multi sends every message through each notifier in turn.
type Multi []Notifier

// Notify implements Notifier. All notifiers are attempted; errors are joined.
func (m Multi) Notify(ctx context.Context, to model.Account, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, to, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Live publishes notifications on the change feed so that connected
// websocket clients receive them.
type Live struct {
	Broker *feed.Broker
}

// Notify implements Notifier.
func (l Live) Notify(_ context.Context, to model.Account, msg Message) error {
	l.Broker.Publish(feed.Event{
		Collection: feed.CollectionNotifications,
		Op:         feed.OpNotify,
		Username:   to.Username,
		Data:       msg,
	})
	return nil
}

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"

	"github.com/doublejdg/stockroom/internal/model"
)

// Expo delivers push notifications to devices registered with Expo.
// Accounts without a push token are skipped.
type Expo struct {
	client *expo.PushClient
}

// NewExpo creates an Expo notifier. An empty host uses the public push
// service.
func NewExpo(host, accessToken string) *Expo {
	return &Expo{
		client: expo.NewPushClient(&expo.ClientConfig{
			Host:        host,
			AccessToken: accessToken,
			HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		}),
	}
}

// Notify implements Notifier.
func (e *Expo) Notify(ctx context.Context, to model.Account, msg Message) error {
	if to.PushToken == "" {
		return nil
	}
	token, err := expo.NewExponentPushToken(to.PushToken)
	if err != nil {
		return fmt.Errorf("push token of %s: %w", to.Username, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := e.client.Publish(&expo.PushMessage{
		To:       []expo.ExponentPushToken{token},
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Data,
		Sound:    "default",
		Priority: expo.DefaultPriority,
	})
	if err != nil {
		return fmt.Errorf("sending push to %s: %w", to.Username, err)
	}
	if err := resp.ValidateResponse(); err != nil {
		return fmt.Errorf("push to %s rejected: %w", to.Username, err)
	}

	slog.Info("push sent", "user", to.Username, "title", msg.Title)
	return nil
}

// Package notify wraps the notification relay provider.
package notify

import (
	"fmt"

	"github.com/containrrr/shoutrrr"
	"github.com/containrrr/shoutrrr/pkg/router"
	"github.com/containrrr/shoutrrr/pkg/types"

	"github.com/mtskcm/iot-service-notifier/internal/models"
)

// Notifier delivers a titled message to the configured relay.
type Notifier interface {
	Notify(title, body string) error
}

// Shoutrrr sends notifications through a shoutrrr service URL
// (pushsafer://..., telegram://..., and so on).
type Shoutrrr struct {
	sender *router.ServiceRouter
}

// NewShoutrrr creates a notifier for the given service URL.
func NewShoutrrr(serviceURL string) (*Shoutrrr, error) {
	sender, err := shoutrrr.CreateSender(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("create notification sender: %w", err)
	}
	return &Shoutrrr{sender: sender}, nil
}

// Notify sends one notification. Delivery failure surfaces as
// models.ErrNotifyFailed; callers treat it as fire-and-forget.
func (s *Shoutrrr) Notify(title, body string) error {
	params := types.Params{"title": title}
	for _, err := range s.sender.Send(body, &params) {
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrNotifyFailed, err)
		}
	}
	return nil
}

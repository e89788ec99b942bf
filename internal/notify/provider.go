// Package notify delivers alert notifications to external channels.
package notify

import (
	"context"

	"github.com/marcuspuchalla/co2-monitor/internal/model"
)

// Provider sends notifications through a specific channel.
type Provider interface {
	Name() string
	Send(ctx context.Context, n model.Notification) error
}

// Package notifications consumes order events and turns them into customer
// email. Everything here is fire-and-forget: a notification that cannot be
// sent is logged and dropped, never retried at the cost of wedging the
// consumer group.
package notifications

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/stores/kafka"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/logkey"
)

// Sender is what the service needs from the mailer.
type Sender interface {
	SendOrderPlaced(to string, event kafka.OrderPlacedEvent) error
}

type Service struct {
	mailer Sender
}

func NewService(mailer Sender) *Service {
	return &Service{mailer: mailer}
}

// HandleOrderPlaced is the bus consumer entry point. It always returns nil:
// the offset is committed whether or not the mail went out.
func (s *Service) HandleOrderPlaced(ctx context.Context, value []byte) error {
	var event kafka.OrderPlacedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		slog.Error("dropping malformed order placed event", slog.String(logkey.ERROR, err.Error()))
		return nil
	}

	if event.UserEmail == "" {
		slog.Warn("order placed event has no email, skipping notification",
			slog.String(logkey.OrderID, event.OrderID),
			slog.String("order_number", event.OrderNumber),
		)
		return nil
	}

	if err := s.mailer.SendOrderPlaced(event.UserEmail, event); err != nil {
		slog.Error("failed to send order placed email",
			slog.String(logkey.OrderID, event.OrderID),
			slog.String(logkey.ERROR, err.Error()),
		)
		return nil
	}

	slog.Info("order confirmation email sent",
		slog.String(logkey.OrderID, event.OrderID),
		slog.String("order_number", event.OrderNumber),
	)
	return nil
}

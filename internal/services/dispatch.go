package services

import (
	"context"
	"time"

	"community-backend/internal/events"
	"community-backend/internal/notify"
	"community-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

const pushTimeout = 10 * time.Second

// Dispatcher fans committed changes out to connected clients, push
// notifications and the event stream. Delivery failures are logged and
// never fail the operation that caused them.
type Dispatcher struct {
	hub    *WSHub
	users  *repository.UserRepository
	pusher notify.Pusher
	events events.Publisher
}

// NewDispatcher creates a dispatcher
func NewDispatcher(hub *WSHub, users *repository.UserRepository, pusher notify.Pusher, publisher events.Publisher) *Dispatcher {
	return &Dispatcher{hub: hub, users: users, pusher: pusher, events: publisher}
}

// Hub returns the WebSocket hub
func (d *Dispatcher) Hub() *WSHub {
	return d.hub
}

// Publish emits a domain event
func (d *Dispatcher) Publish(ctx context.Context, e events.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if err := d.events.Publish(ctx, e); err != nil {
		log.Error().Err(err).Str("type", e.Type).Msg("Failed to publish event")
	}
}

// Deliver sends msg to online recipients and push to offline recipients
// that registered a device token
func (d *Dispatcher) Deliver(ctx context.Context, recipients []int64, msg WSMessage, push notify.Push) {
	var offline []int64
	for _, id := range recipients {
		if d.hub.IsOnline(id) {
			if err := d.hub.SendToUser(id, msg); err == nil {
				continue
			}
		}
		offline = append(offline, id)
	}
	if len(offline) == 0 || push.Title == "" {
		return
	}

	tokens, err := d.users.PushTokens(ctx, offline)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load push tokens")
		return
	}
	if len(tokens) == 0 {
		return
	}

	go func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, pushTimeout)
		defer cancel()
		for userID, token := range tokens {
			p := push
			p.DeviceToken = token
			if err := d.pusher.Send(ctx, p); err != nil {
				log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to send push notification")
			}
		}
	}(context.WithoutCancel(ctx))
}

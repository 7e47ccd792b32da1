package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"path/filepath"
	"strings"

	"community-backend/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
)

// Push is an alert for one device
type Push struct {
	DeviceToken string
	Title       string
	Body        string
	Data        map[string]any
}

// Pusher delivers push notifications
type Pusher interface {
	Send(ctx context.Context, p Push) error
}

// APNs pushes through Apple's HTTP/2 gateway
type APNs struct {
	client *apns2.Client
	topic  string
}

// New returns an APNs pusher, or a no-op when no certificate is configured
func New(cfg config.APNsConfig) (Pusher, error) {
	if cfg.CertFile == "" {
		return Noop{}, nil
	}

	var cert tls.Certificate
	var err error
	switch strings.ToLower(filepath.Ext(cfg.CertFile)) {
	case ".pem":
		cert, err = certificate.FromPemFile(cfg.CertFile, cfg.CertPass)
	default:
		cert, err = certificate.FromP12File(cfg.CertFile, cfg.CertPass)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs certificate: %w", err)
	}

	client := apns2.NewClient(cert)
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	return &APNs{client: client, topic: cfg.Topic}, nil
}

func (a *APNs) Send(ctx context.Context, p Push) error {
	pl := payload.NewPayload().AlertTitle(p.Title).AlertBody(p.Body).Sound("default")
	for k, v := range p.Data {
		pl = pl.Custom(k, v)
	}

	res, err := a.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: p.DeviceToken,
		Topic:       a.topic,
		Payload:     pl,
	})
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected: %d %s", res.StatusCode, res.Reason)
	}
	return nil
}

// Noop drops notifications
type Noop struct{}

func (Noop) Send(_ context.Context, p Push) error {
	log.Debug().Str("title", p.Title).Msg("Push not sent, APNs disabled")
	return nil
}

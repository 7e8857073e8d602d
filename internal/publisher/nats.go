package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"adherence.onebusaway.org/internal/models"
)

// NATSPublisher publishes each round's live vehicles as one JSON array
// message on a fixed subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	logger  *slog.Logger
}

func NewNATSPublisher(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "nats_publisher"))

	nc, err := nats.Connect(url,
		nats.Name("adherence-collector"),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Debug("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return &NATSPublisher{nc: nc, subject: subject, logger: logger}, nil
}

func (p *NATSPublisher) PublishVehicles(ctx context.Context, vehicles []models.LiveVehicle) error {
	b, err := marshalVehicles(vehicles)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject, b); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", p.subject, err)
	}
	p.logger.Debug("published live vehicles",
		slog.String("subject", p.subject),
		slog.Int("vehicles", len(vehicles)))
	return nil
}

func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("nats drain failed", slog.Any("error", err))
		p.nc.Close()
	}
}

// Package publisher delivers the live vehicle list of each round to
// downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"adherence.onebusaway.org/internal/models"
)

// Publisher receives the live vehicles of one round.
type Publisher interface {
	PublishVehicles(ctx context.Context, vehicles []models.LiveVehicle) error
	Close()
}

// Nop discards everything. It is used when no consumer is configured.
type Nop struct{}

func (Nop) PublishVehicles(context.Context, []models.LiveVehicle) error {
	return nil
}

func (Nop) Close() {}

// WriterPublisher writes each round as one JSON array line to w.
type WriterPublisher struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterPublisher(w io.Writer) *WriterPublisher {
	return &WriterPublisher{w: w}
}

func (p *WriterPublisher) PublishVehicles(_ context.Context, vehicles []models.LiveVehicle) error {
	b, err := marshalVehicles(vehicles)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write live vehicles: %w", err)
	}
	return nil
}

func (p *WriterPublisher) Close() {}

// marshalVehicles renders an empty round as [] rather than null.
func marshalVehicles(vehicles []models.LiveVehicle) ([]byte, error) {
	if vehicles == nil {
		vehicles = []models.LiveVehicle{}
	}
	b, err := json.Marshal(vehicles)
	if err != nil {
		return nil, fmt.Errorf("marshal live vehicles: %w", err)
	}
	return b, nil
}

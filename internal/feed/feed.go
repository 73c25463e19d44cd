// Package feed publishes recorder events to Kafka for downstream
// consumers. The feed is optional; a recorder without one works purely
// against the local store.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/AgentTrail/AgentTrail/internal/bus"
)

// Publisher delivers recorder events to an external feed.
type Publisher interface {
	Publish(ctx context.Context, ev *bus.Event) error
	Close() error
}

// KafkaPublisher implements Publisher using segmentio/kafka-go. Events are
// keyed by task id so one task's events land on one partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given comma-separated
// broker list and topic.
func NewKafkaPublisher(brokers, topic, clientID string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	if clientID != "" {
		w.Transport = &kafka.Transport{ClientID: clientID}
	}
	return &KafkaPublisher{writer: w}
}

// Publish writes one event.
func (p *KafkaPublisher) Publish(ctx context.Context, ev *bus.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.TaskID),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close stops the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ChannelPublisher is a test/in-process Publisher implementation backed by
// a Go channel.
type ChannelPublisher struct {
	ch chan *bus.Event
}

// NewChannelPublisher creates an in-process publisher for testing.
func NewChannelPublisher() *ChannelPublisher {
	return &ChannelPublisher{ch: make(chan *bus.Event, 100)}
}

// Publish pushes the event onto the channel.
func (p *ChannelPublisher) Publish(ctx context.Context, ev *bus.Event) error {
	select {
	case p.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the event channel.
func (p *ChannelPublisher) Events() <-chan *bus.Event { return p.ch }

// Close closes the channel.
func (p *ChannelPublisher) Close() error {
	close(p.ch)
	return nil
}

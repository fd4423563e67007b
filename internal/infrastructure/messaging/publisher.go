package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/streadway/amqp"

	"harvest_service/internal/domain/model"
)

const EventRecommendationCreated = "recommendation.created"

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// HistoryPublisher sends every emitted recommendation to a RabbitMQ exchange.
type HistoryPublisher struct {
	conn       *amqp.Connection
	mu         sync.Mutex
	channel    channel
	exchange   string
	routingKey string
	now        func() time.Time
}

// RecommendationEvent is the message body published for each recommendation.
type RecommendationEvent struct {
	Event          string               `json:"event"`
	PublishedAt    time.Time            `json:"published_at"`
	Recommendation model.Recommendation `json:"recommendation"`
}

// NewHistoryPublisher dials RabbitMQ and declares a durable direct exchange.
func NewHistoryPublisher(amqpURL, exchangeName, routingKey string) (*HistoryPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	p := newHistoryPublisher(ch, exchangeName, routingKey)
	p.conn = conn
	return p, nil
}

func newHistoryPublisher(ch channel, exchange, routingKey string) *HistoryPublisher {
	return &HistoryPublisher{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		now:        time.Now,
	}
}

// Record publishes rec as a persistent JSON message.
func (p *HistoryPublisher) Record(ctx context.Context, rec model.Recommendation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish cancelled: %w", err)
	}

	body, err := json.Marshal(RecommendationEvent{
		Event:          EventRecommendationCreated,
		PublishedAt:    p.now().UTC(),
		Recommendation: rec,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message to JSON: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    rec.ID,
		Timestamp:    p.now(),
		Type:         EventRecommendationCreated,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Publish(p.exchange, p.routingKey, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close closes the channel and connection.
func (p *HistoryPublisher) Close() error {
	var err error

	if p.channel != nil {
		if channelErr := p.channel.Close(); channelErr != nil {
			log.WithError(channelErr).Warn("failed to close channel")
			err = channelErr
		}
	}

	if p.conn != nil {
		if connErr := p.conn.Close(); connErr != nil {
			log.WithError(connErr).Warn("failed to close connection")
			if err == nil {
				err = connErr
			}
		}
	}

	return err
}

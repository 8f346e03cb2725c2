// Package publisher publishes scan lifecycle events to RabbitMQ.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aiforce-discovery-agent/clients/scan-console/internal/controller"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/scan"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const eventSource = "/clients/scan-console"

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends CloudEvents to RabbitMQ.
type Publisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	logger   *zap.SugaredLogger
}

// CloudEvent represents the CloudEvents 1.0 specification structure.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	ID              string      `json:"id"`
	Time            string      `json:"time"`
	Subject         string      `json:"subject,omitempty"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`
}

// ScanEventData is the payload of every scan lifecycle event.
type ScanEventData struct {
	ScanID        string  `json:"scan_id,omitempty"`
	IPRange       string  `json:"ip_range,omitempty"`
	Gateway       *string `json:"gateway,omitempty"`
	Ports         []int   `json:"ports,omitempty"`
	Demo          bool    `json:"demo"`
	Status        string  `json:"status,omitempty"`
	Mode          string  `json:"mode,omitempty"`
	HostCount     int     `json:"host_count"`
	OpenPortCount int     `json:"open_port_count"`
	Error         string  `json:"error,omitempty"`

	Hosts []scan.HostSummary `json:"hosts,omitempty"`
}

// New creates a new Publisher connected to RabbitMQ and declares the
// exchange.
func New(url, exchange string, logger *zap.SugaredLogger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Close closes the RabbitMQ connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// HandleScanEvent publishes a controller lifecycle event.
func (p *Publisher) HandleScanEvent(ctx context.Context, e controller.Event) error {
	event := p.createEvent(e)
	return p.publish(ctx, event, "scan."+string(e.Type))
}

func (p *Publisher) createEvent(e controller.Event) CloudEvent {
	data := ScanEventData{
		ScanID:  e.ScanID.String(),
		IPRange: e.Request.IPRange,
		Gateway: e.Request.Gateway,
		Ports:   e.Request.Ports,
		Demo:    e.Request.Demo,
	}
	if e.Snapshot != nil {
		data.Status = string(e.Snapshot.EffectiveStatus())
		data.Mode = string(e.Snapshot.Mode)
		if hosts, err := e.Snapshot.Hosts(); err == nil {
			data.HostCount = len(hosts)
			for _, h := range hosts {
				data.OpenPortCount += len(h.OpenPorts)
			}
			if len(hosts) > 0 {
				data.Hosts = scan.Summarize(hosts)
			}
		}
	}
	if e.Err != nil {
		data.Error = e.Err.Error()
	}

	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	return CloudEvent{
		SpecVersion:     "1.0",
		Type:            "scan.lifecycle." + string(e.Type),
		Source:          eventSource,
		ID:              uuid.New().String(),
		Time:            at.UTC().Format(time.RFC3339),
		Subject:         e.ScanID.String(),
		DataContentType: "application/json",
		Data:            data,
	}
}

func (p *Publisher) publish(ctx context.Context, event CloudEvent, routingKey string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/cloudevents+json",
			Body:        body,
			MessageId:   event.ID,
			Timestamp:   time.Now(),
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debugw("Event published",
		"type", event.Type,
		"id", event.ID,
		"routing_key", routingKey,
	)

	return nil
}

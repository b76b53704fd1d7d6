// Package events publishes transcription lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

type Type string

const (
	TypeStarted   Type = "started"
	TypeCompleted Type = "completed"
	TypeFailed    Type = "failed"
	TypeCancelled Type = "cancelled"
)

// Event describes one state change of a transcription request
type Event struct {
	Type        Type      `json:"type"`
	RequestID   string    `json:"request_id"`
	Source      string    `json:"source"`
	Format      string    `json:"format,omitempty"`
	Language    string    `json:"language,omitempty"`
	Diarization bool      `json:"speaker_diarization"`
	Degraded    bool      `json:"degraded,omitempty"`
	Duration    float64   `json:"duration,omitempty"`
	Elapsed     float64   `json:"elapsed,omitempty"`
	Speakers    []string  `json:"speakers,omitempty"`
	Error       string    `json:"error,omitempty"`
	Time        time.Time `json:"time"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Noop drops every event
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close()                               {}

type NATSConfig struct {
	URL            string
	Subject        string
	Token          string
	ConnectTimeout time.Duration
}

// NATSPublisher sends events as JSON to "<subject>.<type>"
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	publish func(subject string, data []byte) error
}

func ConnectNATS(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("no NATS url configured")
	}
	options := []nats.Option{
		nats.Name("asr-api"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[events] disconnected from NATS: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("[events] reconnected to %s", c.ConnectedUrl())
		}),
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	log.Printf("[events] connected to NATS %s, subject %s", cfg.URL, cfg.Subject)
	return &NATSPublisher{conn: conn, subject: cfg.Subject, publish: conn.Publish}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.subject + "." + string(e.Type)
	if err := p.publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (p *NATSPublisher) Healthy() bool {
	return p.conn != nil && p.conn.Status() == nats.CONNECTED
}

func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		log.Printf("[events] drain: %v", err)
	}
	p.conn.Close()
}

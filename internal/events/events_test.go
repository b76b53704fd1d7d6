package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type sent struct {
	subject string
	data    []byte
}

func TestNATSPublisherSubjectAndPayload(t *testing.T) {
	var got []sent
	p := &NATSPublisher{subject: "asr.transcriptions", publish: func(s string, d []byte) error {
		got = append(got, sent{s, d})
		return nil
	}}

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	err := p.Publish(context.Background(), Event{
		Type:      TypeCompleted,
		RequestID: "req-1",
		Source:    "upload",
		Speakers:  []string{"spk0"},
		Duration:  12.5,
		Time:      at,
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(got) != 1 || got[0].subject != "asr.transcriptions.completed" {
		t.Fatalf("sent = %+v", got)
	}

	var decoded map[string]any
	if err := json.Unmarshal(got[0].data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["request_id"] != "req-1" || decoded["duration"] != 12.5 || decoded["time"] != "2025-01-02T03:04:05Z" {
		t.Fatalf("payload = %s", got[0].data)
	}
	if _, ok := decoded["error"]; ok {
		t.Fatalf("empty error field serialized: %s", got[0].data)
	}
}

func TestNATSPublisherErrors(t *testing.T) {
	p := &NATSPublisher{subject: "s", publish: func(string, []byte) error { return errors.New("nats: connection closed") }}
	if err := p.Publish(context.Background(), Event{Type: TypeFailed}); err == nil {
		t.Fatal("publish error swallowed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, Event{Type: TypeFailed}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Publish() error = %v, want context.Canceled", err)
	}
}

func TestConnectNATSRequiresURL(t *testing.T) {
	if _, err := ConnectNATS(NATSConfig{}); err == nil {
		t.Fatal("empty url accepted")
	}
	var n Noop
	if err := n.Publish(context.Background(), Event{}); err != nil {
		t.Fatal(err)
	}
	n.Close()
}

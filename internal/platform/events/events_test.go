package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeReportGenerated, map[string]interface{}{"site": "0201"})
	if evt.ID == "" {
		t.Error("expected event id")
	}
	if evt.Source != Source || evt.Type != TypeReportGenerated {
		t.Errorf("unexpected envelope %+v", evt)
	}
	if evt.Timestamp.IsZero() {
		t.Error("expected timestamp")
	}
}

func TestMessage(t *testing.T) {
	evt := NewEvent(TypeCachePurged, map[string]interface{}{"prefix": "site_0201_"})
	msg, err := Message(evt)
	if err != nil {
		t.Fatalf("Message() error: %v", err)
	}
	if string(msg.Key) != evt.ID {
		t.Errorf("expected key %q, got %q", evt.ID, msg.Key)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["event-type"] != TypeCachePurged || headers["source"] != Source {
		t.Errorf("unexpected headers %v", headers)
	}

	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if decoded.Data["prefix"] != "site_0201_" {
		t.Errorf("unexpected data %v", decoded.Data)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
	done   chan struct{}
}

func (r *recordingPublisher) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	close(r.done)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func TestNotify_DeliversAndSwallowsErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down"), done: make(chan struct{})}
	Notify(pub, zerolog.Nop(), NewEvent(TypeReportGenerated, nil))

	select {
	case <-pub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 1 {
		t.Errorf("expected 1 event, got %d", len(pub.events))
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(context.Background(), NewEvent(TypeReportGenerated, nil)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	Notify(nil, zerolog.Nop(), Event{})
}

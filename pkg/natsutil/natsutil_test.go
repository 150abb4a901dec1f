package natsutil

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type testMsg struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func startNATS(t *testing.T) *nats.Conn {
	t.Helper()
	ns, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
	})
	return nc
}

func TestCarrierInitializesHeader(t *testing.T) {
	msg := &nats.Msg{}
	c := carrier(msg)
	c.Set("traceparent", "00-abc-def-01")
	if msg.Header.Get("Traceparent") != "00-abc-def-01" {
		t.Fatalf("header = %v", msg.Header)
	}
	if len(c.Keys()) != 1 {
		t.Fatalf("keys = %v", c.Keys())
	}
}

func TestPublishSubscribe(t *testing.T) {
	nc := startNATS(t)

	ch := make(chan testMsg, 1)
	sub, err := Subscribe(nc, "test.pubsub", nil, func(_ context.Context, m testMsg) { ch <- m })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	// Malformed payloads are dropped before the good one arrives.
	if err := nc.Publish("test.pubsub", []byte("{invalid")); err != nil {
		t.Fatal(err)
	}
	if err := Publish(context.Background(), nc, "test.pubsub", testMsg{Name: "hello", Value: 1}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.Name != "hello" || got.Value != 1 {
			t.Fatalf("unexpected: %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestTraceContextPropagates(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	nc := startNATS(t)
	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	ch := make(chan trace.SpanContext, 1)
	sub, err := Subscribe(nc, "test.trace", nil, func(ctx context.Context, _ testMsg) {
		ch <- trace.SpanContextFromContext(ctx)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := Publish(ctx, nc, "test.trace", testMsg{}); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-ch:
		if got.TraceID() != traceID {
			t.Fatalf("trace id = %s", got.TraceID())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout")
	}
}

func TestRequestRespond(t *testing.T) {
	nc := startNATS(t)

	sub, err := Respond(nc, "test.double", "workers", nil, DecodeJSON[testMsg],
		func(_ context.Context, m testMsg) (testMsg, error) {
			if m.Value < 0 {
				return testMsg{}, errors.New("negative value")
			}
			return testMsg{Name: m.Name, Value: m.Value * 2}, nil
		})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	defer sub.Unsubscribe()

	got, err := Request[testMsg, testMsg](context.Background(), nc, "test.double", testMsg{Name: "x", Value: 21})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got.Value != 42 || got.Name != "x" {
		t.Fatalf("unexpected reply: %+v", got)
	}

	_, err = Request[testMsg, testMsg](context.Background(), nc, "test.double", testMsg{Value: -1})
	if !errors.Is(err, ErrRemote) || !strings.Contains(err.Error(), "negative value") {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestRespondDecodeError(t *testing.T) {
	nc := startNATS(t)

	sub, err := Respond(nc, "test.strict", "", nil, DecodeJSON[testMsg],
		func(_ context.Context, m testMsg) (testMsg, error) { return m, nil })
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	_, err = Request[string, testMsg](context.Background(), nc, "test.strict", "not an object")
	if !errors.Is(err, ErrRemote) {
		t.Fatalf("expected remote decode error, got %v", err)
	}
}

func TestRequestNoResponders(t *testing.T) {
	nc := startNATS(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Request[testMsg, testMsg](ctx, nc, "test.nobody", testMsg{}); err == nil {
		t.Fatal("expected error without responders")
	}
}

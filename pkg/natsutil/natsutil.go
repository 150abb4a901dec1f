// Package natsutil provides typed JSON publish, subscribe and request/reply
// helpers over NATS with OpenTelemetry context propagation.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// DefaultTimeout bounds Request when ctx has no deadline.
const DefaultTimeout = 5 * time.Second

// ErrRemote wraps an error reported by a Respond handler.
var ErrRemote = errors.New("natsutil: remote error")

// Reply is the envelope Respond sends back. Exactly one field is set.
type Reply[T any] struct {
	Data  *T     `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// nats.Header has the same shape as http.Header.
func carrier(msg *nats.Msg) propagation.HeaderCarrier {
	if msg.Header == nil {
		msg.Header = make(nats.Header)
	}
	return propagation.HeaderCarrier(http.Header(msg.Header))
}

func inject(ctx context.Context, msg *nats.Msg) {
	otel.GetTextMapPropagator().Inject(ctx, carrier(msg))
}

func extract(msg *nats.Msg) context.Context {
	return otel.GetTextMapPropagator().Extract(context.Background(), carrier(msg))
}

func encode[T any](ctx context.Context, subject string, v T) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("natsutil: encode %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	inject(ctx, msg)
	return msg, nil
}

// Publish sends v as JSON with the trace context of ctx in the headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	msg, err := encode(ctx, subject, v)
	if err != nil {
		return err
	}
	if err := nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("natsutil: publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe decodes JSON messages into T and calls handler with the
// propagated trace context. Messages that do not decode are logged and
// dropped.
func Subscribe[T any](nc *nats.Conn, subject string, logger *slog.Logger, handler func(context.Context, T)) (*nats.Subscription, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			logger.Warn("dropping malformed message", "subject", msg.Subject, "err", err)
			return
		}
		handler(extract(msg), v)
	})
}

// Request sends req and decodes the Reply. The wait is bounded by ctx, or
// by DefaultTimeout when ctx has no deadline.
func Request[Req, Resp any](ctx context.Context, nc *nats.Conn, subject string, req Req) (Resp, error) {
	var zero Resp
	msg, err := encode(ctx, subject, req)
	if err != nil {
		return zero, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	resp, err := nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return zero, fmt.Errorf("natsutil: request %s: %w", subject, err)
	}
	var reply Reply[Resp]
	if err := json.Unmarshal(resp.Data, &reply); err != nil {
		return zero, fmt.Errorf("natsutil: decode reply from %s: %w", subject, err)
	}
	if reply.Error != "" {
		return zero, fmt.Errorf("%w: %s", ErrRemote, reply.Error)
	}
	if reply.Data == nil {
		return zero, fmt.Errorf("natsutil: empty reply from %s", subject)
	}
	return *reply.Data, nil
}

// Respond serves request/reply on subject within queue group queue (empty
// for none). The raw request payload is passed to decode so callers choose
// how strict decoding is; decode and handler errors become Reply.Error.
func Respond[Req, Resp any](nc *nats.Conn, subject, queue string, logger *slog.Logger,
	decode func([]byte) (Req, error), handler func(context.Context, Req) (Resp, error)) (*nats.Subscription, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cb := func(msg *nats.Msg) {
		ctx := extract(msg)
		var reply Reply[Resp]
		if req, err := decode(msg.Data); err != nil {
			reply.Error = err.Error()
		} else if resp, err := handler(ctx, req); err != nil {
			reply.Error = err.Error()
		} else {
			reply.Data = &resp
		}
		out, err := encode(ctx, msg.Reply, reply)
		if err != nil {
			logger.Error("encode reply", "subject", subject, "err", err)
			return
		}
		if msg.Reply == "" {
			return
		}
		if err := msg.RespondMsg(out); err != nil {
			logger.Error("send reply", "subject", subject, "err", err)
		}
	}
	if queue == "" {
		return nc.Subscribe(subject, cb)
	}
	return nc.QueueSubscribe(subject, queue, cb)
}

// DecodeJSON is a strict decode function for Respond.
func DecodeJSON[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

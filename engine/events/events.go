// Package events connects the resolver to NATS: it announces completed
// resolutions and serves resolve requests from other processes.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/manas-droid/ArtAtlas/engine/view"
	"github.com/manas-droid/ArtAtlas/pkg/natsutil"
)

// Default subjects.
const (
	SubjectSearchResolved = "artatlas.search.resolved"
	SubjectResolve        = "artatlas.resolve"
	ResolverQueue         = "artatlas-resolvers"
)

// SearchResolved summarizes one resolution for downstream consumers.
type SearchResolved struct {
	ID                  string    `json:"id"`
	Query               string    `json:"query"`
	Blocks              int       `json:"blocks"`
	Artworks            int       `json:"artworks"`
	Essays              int       `json:"essays"`
	ExplanationComplete bool      `json:"explanationComplete"`
	ResolvedAt          time.Time `json:"resolvedAt"`
}

// Summarize builds the event for ui.
func Summarize(ui view.UIModel, at time.Time) SearchResolved {
	return SearchResolved{
		ID:                  uuid.NewString(),
		Query:               ui.ExplanationModel.Query,
		Blocks:              len(ui.ExplanationModel.ExplanationBlocks),
		Artworks:            len(ui.FullResultModel.Artwork),
		Essays:              len(ui.FullResultModel.Essay),
		ExplanationComplete: ui.ExplanationModel.Metadata.ExplanationComplete,
		ResolvedAt:          at.UTC(),
	}
}

// Publisher emits SearchResolved events. A nil *Publisher does nothing.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *slog.Logger
	now     func() time.Time
}

// NewPublisher publishes on subject, or SubjectSearchResolved when empty.
func NewPublisher(nc *nats.Conn, subject string, logger *slog.Logger) *Publisher {
	if subject == "" {
		subject = SubjectSearchResolved
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{nc: nc, subject: subject, logger: logger.With("component", "events"), now: time.Now}
}

// SearchResolved publishes the summary of ui.
func (p *Publisher) SearchResolved(ctx context.Context, ui view.UIModel) error {
	if p == nil || p.nc == nil {
		return nil
	}
	ev := Summarize(ui, p.now())
	if err := natsutil.Publish(ctx, p.nc, p.subject, ev); err != nil {
		return fmt.Errorf("events: search resolved: %w", err)
	}
	p.logger.Debug("published", "subject", p.subject, "event_id", ev.ID, "query", ev.Query)
	return nil
}

// ErrEmptyPayload is returned to requesters that send no body.
var ErrEmptyPayload = errors.New("events: empty resolve payload")

func rawPayload(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrEmptyPayload
	}
	return b, nil
}

// ServeResolver answers resolve requests on subject (SubjectResolve when
// empty) in the ResolverQueue group. The request body is a raw backend
// response; the reply carries the composed view.UIModel. rec may be nil.
func ServeResolver(nc *nats.Conn, subject string, logger *slog.Logger, rec view.Recorder) (*nats.Subscription, error) {
	if subject == "" {
		subject = SubjectResolve
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "resolver", "subject", subject)
	run := view.Pipeline()

	sub, err := natsutil.Respond(nc, subject, ResolverQueue, logger, rawPayload,
		func(ctx context.Context, payload []byte) (view.UIModel, error) {
			res, err := run(ctx, payload).Unwrap()
			if err != nil {
				logger.Warn("resolve request rejected", "err", err)
				return view.UIModel{}, err
			}
			view.Record(rec, res)
			logger.Debug("resolved",
				"query", res.UI.ExplanationModel.Query,
				"blocks", len(res.UI.ExplanationModel.ExplanationBlocks),
				"graph_errors", len(res.Report.Errors),
			)
			return res.UI, nil
		})
	if err != nil {
		return nil, fmt.Errorf("events: serve resolver on %s: %w", subject, err)
	}
	return sub, nil
}

package events

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/manas-droid/ArtAtlas/engine/domain"
	"github.com/manas-droid/ArtAtlas/engine/view"
	"github.com/manas-droid/ArtAtlas/pkg/natsutil"
)

const payload = `{
  "query": "cubist guitar",
  "results": [
    {"id":42,"result_type":"artwork","title":"Guitar","score":{"final_score":0.8}},
    {"id":7,"result_type":"essay","title":"On Cubism","score":{"final_score":0.6}}
  ],
  "explanation_graph": {
    "nodes": [
      {"node_id":1,"node_type":"concept","label":"Cubism"},
      {"node_id":2,"node_type":"bundle"},
      {"node_id":3,"node_type":"artwork","ref_id":42}
    ],
    "edges": [
      {"edge_type":"query_supports_concept","from_node":0,"to_node":1,"confidence":0.9},
      {"edge_type":"concept_forms_bundle","from_node":1,"to_node":2,"confidence":0.8},
      {"edge_type":"bundle_supported_by_artwork","from_node":2,"to_node":3,"confidence":0.75,"provenance":"embedding_similarity"}
    ]
  },
  "meta": {"explanation_complete": false}
}`

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

func compose(t *testing.T) view.UIModel {
	t.Helper()
	resp, err := domain.Decode([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	return view.Compose(resp)
}

func TestSummarize(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	ev := Summarize(compose(t), at)
	if _, err := uuid.Parse(ev.ID); err != nil {
		t.Fatalf("id %q is not a uuid", ev.ID)
	}
	if ev.Query != "cubist guitar" || ev.Blocks != 1 || ev.Artworks != 1 || ev.Essays != 1 {
		t.Fatalf("unexpected summary: %+v", ev)
	}
	if ev.ExplanationComplete {
		t.Fatal("explanation_complete=false should carry through")
	}
	if ev.ResolvedAt.Location() != time.UTC || !ev.ResolvedAt.Equal(at) {
		t.Fatalf("resolvedAt = %v", ev.ResolvedAt)
	}
}

func TestPublisherSearchResolved(t *testing.T) {
	nc := startNATS(t)
	ch := make(chan SearchResolved, 1)
	sub, err := natsutil.Subscribe(nc, "test.resolved", nil, func(_ context.Context, ev SearchResolved) { ch <- ev })
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	p := NewPublisher(nc, "test.resolved", nil)
	if err := p.SearchResolved(context.Background(), compose(t)); err != nil {
		t.Fatalf("SearchResolved: %v", err)
	}
	select {
	case ev := <-ch:
		if ev.Query != "cubist guitar" || ev.Blocks != 1 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNilPublisher(t *testing.T) {
	var p *Publisher
	if err := p.SearchResolved(context.Background(), view.UIModel{}); err != nil {
		t.Fatalf("nil publisher should be a no-op: %v", err)
	}
}

type counter struct{ calls atomic.Int32 }

func (c *counter) Resolution(int, int, int, int, int) { c.calls.Add(1) }

func TestServeResolver(t *testing.T) {
	nc := startNATS(t)
	rec := &counter{}
	sub, err := ServeResolver(nc, "", nil, rec)
	if err != nil {
		t.Fatalf("ServeResolver: %v", err)
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ui, err := natsutil.Request[json.RawMessage, view.UIModel](ctx, nc, SubjectResolve, json.RawMessage(payload))
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	want := compose(t)
	if len(ui.ExplanationModel.ExplanationBlocks) != 1 {
		t.Fatalf("blocks = %+v", ui.ExplanationModel.ExplanationBlocks)
	}
	got := ui.ExplanationModel.ExplanationBlocks[0]
	if got.Concept.Label != "Cubism" || got.Evidence.OverallStrengthLabel != want.ExplanationModel.ExplanationBlocks[0].Evidence.OverallStrengthLabel {
		t.Fatalf("unexpected block: %+v", got)
	}
	if len(ui.FullResultModel.Essay) != 1 || ui.FullResultModel.Essay[0].EssayTitle != "On Cubism" {
		t.Fatalf("essays = %+v", ui.FullResultModel.Essay)
	}
	if n := rec.calls.Load(); n != 1 {
		t.Fatalf("recorder calls = %d", n)
	}
}

func TestServeResolverMalformed(t *testing.T) {
	nc := startNATS(t)
	sub, err := ServeResolver(nc, "test.resolve", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := nc.RequestWithContext(ctx, "test.resolve", []byte("{broken"))
	if err != nil {
		t.Fatal(err)
	}
	var reply natsutil.Reply[view.UIModel]
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Error == "" || reply.Data != nil {
		t.Fatalf("expected error reply, got %+v", reply)
	}

	_, err = natsutil.Request[json.RawMessage, view.UIModel](ctx, nc, "test.resolve", json.RawMessage(`[]`))
	if err != nil {
		t.Fatalf("well-formed non-object payload should resolve to an empty model: %v", err)
	}
}

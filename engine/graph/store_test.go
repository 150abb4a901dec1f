package graph

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/manas-droid/ArtAtlas/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type call struct {
	cypher string
	params map[string]any
}

type fakeResult struct {
	recs []*neo4j.Record
	i    int
	err  error
}

func (r *fakeResult) Next(context.Context) bool {
	if r.i >= len(r.recs) {
		return false
	}
	r.i++
	return true
}

func (r *fakeResult) Record() *neo4j.Record { return r.recs[r.i-1] }
func (r *fakeResult) Err() error            { return r.err }

// fakeSession records every statement in calls and the statements that
// actually took effect in committed. Statements inside Write are committed
// only when the work succeeds.
type fakeSession struct {
	calls     []call
	committed []call
	rows      map[string][]*neo4j.Record
	fail      map[string]error
	writes    int
	rollbacks int
	closed    int
}

func (f *fakeSession) run(cypher string, params map[string]any) (result, error) {
	f.calls = append(f.calls, call{cypher, params})
	if err := f.fail[cypher]; err != nil {
		return nil, err
	}
	return &fakeResult{recs: f.rows[cypher]}, nil
}

func (f *fakeSession) Run(_ context.Context, cypher string, params map[string]any) (result, error) {
	res, err := f.run(cypher, params)
	if err == nil {
		f.committed = append(f.committed, call{cypher, params})
	}
	return res, err
}

func (f *fakeSession) Write(_ context.Context, work func(tx querier) error) error {
	f.writes++
	tx := &fakeTx{sess: f}
	if err := work(tx); err != nil {
		f.rollbacks++
		return err
	}
	f.committed = append(f.committed, tx.pending...)
	return nil
}

type fakeTx struct {
	sess    *fakeSession
	pending []call
}

func (t *fakeTx) Run(_ context.Context, cypher string, params map[string]any) (result, error) {
	res, err := t.sess.run(cypher, params)
	if err == nil {
		t.pending = append(t.pending, call{cypher, params})
	}
	return res, err
}

func (f *fakeSession) Close(context.Context) error {
	f.closed++
	return nil
}

func newFakeStore(sess *fakeSession) *Store {
	s := NewStore(nil, "")
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	s.newSession = func(context.Context) runner { return sess }
	return s
}

func record(kv ...any) *neo4j.Record {
	rec := &neo4j.Record{}
	for i := 0; i+1 < len(kv); i += 2 {
		rec.Keys = append(rec.Keys, kv[i].(string))
		rec.Values = append(rec.Values, kv[i+1])
	}
	return rec
}

const payload = `{
  "query": "cubist guitar",
  "results": [{"id":42,"result_type":"artwork","title":"Guitar","score":{"final_score":0.7}}],
  "explanation_graph": {
    "nodes": [
      {"node_id":"q","node_type":"query"},
      {"node_id":1,"node_type":"concept","label":"Cubism"},
      {"node_id":"1","node_type":"bundle","confidence":0.75},
      {"node_id":3,"node_type":"artwork","ref_id":42}
    ],
    "edges": [
      {"edge_type":"query_supports_concept","from_node":"q","to_node":1,"confidence":0.9,"provenance":"v2_detected_concepts"},
      {"edge_type":"concept_forms_bundle","from_node":1,"to_node":"1","confidence":1},
      {"edge_type":"bundle_supported_by_artwork","from_node":"1","to_node":3}
    ]
  },
  "meta": {"explanation_complete": true}
}`

func decode(t *testing.T, s string) domain.Response {
	t.Helper()
	resp, err := domain.Decode([]byte(s))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return resp
}

func TestSaveStatements(t *testing.T) {
	sess := &fakeSession{}
	if err := newFakeStore(sess).Save(context.Background(), " snap-1 ", decode(t, payload)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	want := []string{cypherDelete, cypherCreateSnapshot, cypherCreateNodes, cypherCreateEdges, cypherLinkEdges}
	if len(sess.calls) != len(want) {
		t.Fatalf("expected %d statements, got %d", len(want), len(sess.calls))
	}
	for i, c := range sess.calls {
		if c.cypher != want[i] {
			t.Fatalf("statement %d = %q", i, c.cypher)
		}
		if c.params["id"] != "snap-1" {
			t.Fatalf("statement %d id = %v", i, c.params["id"])
		}
	}
	if sess.closed != 1 {
		t.Fatalf("session closed %d times", sess.closed)
	}
	if sess.writes != 1 || len(sess.committed) != len(want) {
		t.Fatalf("expected one transaction committing %d statements, got %d writes, %d committed",
			len(want), sess.writes, len(sess.committed))
	}

	snap := sess.calls[1].params
	if snap["query"] != "cubist guitar" || snap["has_graph"] != true || snap["node_count"] != int64(4) || snap["edge_count"] != int64(3) {
		t.Fatalf("snapshot params = %v", snap)
	}
	if snap["saved_at"] != "2026-03-01T12:00:00Z" {
		t.Fatalf("saved_at = %v", snap["saved_at"])
	}

	nodes := sess.calls[2].params["nodes"].([]map[string]any)
	if nodes[1]["key"] != "1" || nodes[2]["key"] != `"1"` {
		t.Fatalf("string and numeric ids must get distinct keys: %v / %v", nodes[1]["key"], nodes[2]["key"])
	}
	if nodes[0]["label"] != nil || nodes[1]["label"] != "Cubism" || nodes[3]["ref_id"] != 42.0 {
		t.Fatalf("node params = %v", nodes)
	}
	edges := sess.calls[3].params["edges"].([]map[string]any)
	if edges[2]["seq"] != int64(2) || edges[2]["confidence"] != nil || edges[1]["provenance"] != nil {
		t.Fatalf("edge params = %v", edges[2])
	}
}

func TestSaveWithoutGraph(t *testing.T) {
	sess := &fakeSession{}
	if err := newFakeStore(sess).Save(context.Background(), "bare", decode(t, `{"query":"x"}`)); err != nil {
		t.Fatal(err)
	}
	if len(sess.calls) != 2 {
		t.Fatalf("expected delete and create only, got %d statements", len(sess.calls))
	}
	if sess.calls[1].params["has_graph"] != false {
		t.Fatal("has_graph should be false")
	}
}

func TestSaveErrorCommitsNothing(t *testing.T) {
	boom := errors.New("boom")
	for _, failing := range []string{cypherCreateSnapshot, cypherCreateNodes, cypherCreateEdges, cypherLinkEdges} {
		sess := &fakeSession{fail: map[string]error{failing: boom}}
		err := newFakeStore(sess).Save(context.Background(), "s", decode(t, payload))
		if !errors.Is(err, boom) || !strings.Contains(err.Error(), "graph: save ") {
			t.Fatalf("err = %v", err)
		}
		if sess.rollbacks != 1 || len(sess.committed) != 0 {
			t.Fatalf("failure in %q: %d rollbacks, %d statements committed", failing, sess.rollbacks, len(sess.committed))
		}
		if n := len(sess.calls); n < 2 || sess.calls[0].cypher != cypherDelete {
			t.Fatalf("failure in %q: delete should run inside the transaction, calls = %d", failing, n)
		}
		if last := sess.calls[len(sess.calls)-1].cypher; last != failing {
			t.Fatalf("save continued after %q failed", failing)
		}
	}

	sess := &fakeSession{fail: map[string]error{cypherCreateNodes: boom}}
	err := newFakeStore(sess).Save(context.Background(), "s", decode(t, payload))
	if !strings.Contains(err.Error(), "save nodes") {
		t.Fatalf("err = %v", err)
	}
}

func TestInvalidID(t *testing.T) {
	s := newFakeStore(&fakeSession{})
	ctx := context.Background()
	for _, id := range []string{"", "   ", strings.Repeat("x", maxSnapshotID+1)} {
		if err := s.Save(ctx, id, domain.Response{}); !errors.Is(err, ErrInvalidSnapshotID) {
			t.Fatalf("Save(%q) err = %v", id, err)
		}
		if _, err := s.Load(ctx, id); !errors.Is(err, ErrInvalidSnapshotID) {
			t.Fatalf("Load(%q) err = %v", id, err)
		}
		if err := s.Delete(ctx, id); !errors.Is(err, ErrInvalidSnapshotID) {
			t.Fatalf("Delete(%q) err = %v", id, err)
		}
	}
}

// replay turns the parameters captured by Save into the rows Load reads back.
func replay(saved *fakeSession) *fakeSession {
	byCypher := map[string]map[string]any{}
	for _, c := range saved.calls {
		byCypher[c.cypher] = c.params
	}
	snap := byCypher[cypherCreateSnapshot]
	rows := map[string][]*neo4j.Record{
		cypherLoadSnapshot: {record(
			"query", snap["query_json"], "message", snap["message_json"],
			"results", snap["results_json"], "meta", snap["meta_json"], "has_graph", snap["has_graph"],
		)},
	}
	if p, ok := byCypher[cypherCreateNodes]; ok {
		for _, n := range p["nodes"].([]map[string]any) {
			rows[cypherLoadNodes] = append(rows[cypherLoadNodes], record("doc", n["doc"]))
		}
	}
	if p, ok := byCypher[cypherCreateEdges]; ok {
		for _, e := range p["edges"].([]map[string]any) {
			rows[cypherLoadEdges] = append(rows[cypherLoadEdges], record("doc", e["doc"]))
		}
	}
	return &fakeSession{rows: rows}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, in := range []string{payload, `{"query":"only results","results":[{"id":1,"result_type":"essay"}]}`, `{}`} {
		want := decode(t, in)
		saved := &fakeSession{}
		if err := newFakeStore(saved).Save(ctx, "s", want); err != nil {
			t.Fatal(err)
		}
		got, err := newFakeStore(replay(saved)).Load(ctx, "s")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip mismatch for %s:\n got %+v\nwant %+v", in, got, want)
		}
	}
}

func TestLoadNotFound(t *testing.T) {
	_, err := newFakeStore(&fakeSession{}).Load(context.Background(), "missing")
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadSkipsCorruptDocs(t *testing.T) {
	sess := &fakeSession{rows: map[string][]*neo4j.Record{
		cypherLoadSnapshot: {record("query", `"q"`, "message", nil, "results", "not json", "meta", nil, "has_graph", true)},
		cypherLoadNodes:    {record("doc", `{"node_id":"a","node_type":"query"}`), record("doc", "{broken"), record("doc", nil)},
	}}
	resp, err := newFakeStore(sess).Load(context.Background(), "s")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Query.String() != "q" || len(resp.Results) != 0 {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp.Nodes()) != 1 || !resp.Nodes()[0].Is(domain.NodeQuery) {
		t.Fatalf("nodes = %+v", resp.Nodes())
	}
	if !resp.ExplanationGraph.Present() || len(resp.Edges()) != 0 {
		t.Fatal("graph should be present with no edges")
	}
}

func TestList(t *testing.T) {
	sess := &fakeSession{rows: map[string][]*neo4j.Record{
		cypherList: {
			record("id", "b", "query", "guitar", "saved_at", "2026-03-02T00:00:00Z", "nodes", int64(4), "edges", int64(3)),
			record("id", "a", "query", nil, "saved_at", "bogus", "nodes", nil, "edges", nil),
		},
	}}
	list, err := newFakeStore(sess).List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[0].Nodes != 4 || list[0].Edges != 3 {
		t.Fatalf("list = %+v", list)
	}
	if !list[0].SavedAt.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("saved_at = %v", list[0].SavedAt)
	}
	if list[1].Query != "" || !list[1].SavedAt.IsZero() {
		t.Fatalf("missing values should be zero: %+v", list[1])
	}

	empty, err := newFakeStore(&fakeSession{}).List(context.Background())
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("empty list = %v, %v", empty, err)
	}
}

func TestDelete(t *testing.T) {
	sess := &fakeSession{}
	if err := newFakeStore(sess).Delete(context.Background(), "s"); err != nil {
		t.Fatal(err)
	}
	if len(sess.calls) != 1 || sess.calls[0].cypher != cypherDelete {
		t.Fatalf("calls = %+v", sess.calls)
	}
}

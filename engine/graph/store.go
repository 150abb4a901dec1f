// Package graph persists explanation graph snapshots in Neo4j so a backend
// response can be replayed and inspected offline.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/manas-droid/ArtAtlas/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var (
	ErrInvalidSnapshotID = errors.New("graph: invalid snapshot id")
	ErrSnapshotNotFound  = errors.New("graph: snapshot not found")
)

const maxSnapshotID = 128

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// querier runs a single statement, either auto-committed or inside a
// transaction.
type querier interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
}

// runner is the minimal interface needed from a neo4j session. Write runs
// work in one write transaction; an error from work rolls it back.
type runner interface {
	querier
	Write(ctx context.Context, work func(tx querier) error) error
	Close(ctx context.Context) error
}

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Write(ctx context.Context, work func(tx querier) error) error {
	_, err := a.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, work(&txAdapter{tx: tx})
	})
	return err
}

type txAdapter struct {
	tx neo4j.ManagedTransaction
}

func (a *txAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.tx.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

// Store reads and writes snapshots.
type Store struct {
	driver     neo4j.DriverWithContext
	database   string
	now        func() time.Time
	newSession func(ctx context.Context) runner // for testing
}

// NewStore wraps an existing driver. An empty database uses the server default.
func NewStore(driver neo4j.DriverWithContext, database string) *Store {
	return &Store{driver: driver, database: database, now: time.Now}
}

// Open connects to url and verifies connectivity. Blank user means no auth.
func Open(ctx context.Context, url, user, password, database string) (*Store, error) {
	auth := neo4j.NoAuth()
	if user != "" {
		auth = neo4j.BasicAuth(user, password, "")
	}
	driver, err := neo4j.NewDriverWithContext(url, auth)
	if err != nil {
		return nil, fmt.Errorf("graph: connect: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("graph: verify: %w", err)
	}
	return NewStore(driver, database), nil
}

// Close releases the driver.
func (s *Store) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

func (s *Store) session(ctx context.Context) runner {
	if s.newSession != nil {
		return s.newSession(ctx)
	}
	return &sessionAdapter{sess: s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})}
}

// SnapshotInfo summarizes a stored snapshot.
type SnapshotInfo struct {
	ID      string    `json:"id"`
	Query   string    `json:"query"`
	SavedAt time.Time `json:"savedAt"`
	Nodes   int64     `json:"nodes"`
	Edges   int64     `json:"edges"`
}

func checkID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxSnapshotID {
		return "", fmt.Errorf("%w: %q", ErrInvalidSnapshotID, id)
	}
	return id, nil
}

const (
	cypherDelete = `MATCH (s:Snapshot {id: $id})
OPTIONAL MATCH (s)-[:HAS_NODE|HAS_EDGE]->(x)
DETACH DELETE s, x`

	cypherCreateSnapshot = `CREATE (s:Snapshot {id: $id, query: $query, saved_at: $saved_at,
  query_json: $query_json, message_json: $message_json,
  results_json: $results_json, meta_json: $meta_json,
  has_graph: $has_graph, node_count: $node_count, edge_count: $edge_count})`

	cypherCreateNodes = `MATCH (s:Snapshot {id: $id})
UNWIND $nodes AS n
CREATE (s)-[:HAS_NODE]->(:ExplanationNode {snapshot: $id, seq: n.seq, key: n.key,
  node_type: n.node_type, label: n.label, confidence: n.confidence, ref_id: n.ref_id, doc: n.doc})`

	cypherCreateEdges = `MATCH (s:Snapshot {id: $id})
UNWIND $edges AS e
CREATE (s)-[:HAS_EDGE]->(:ExplanationEdge {snapshot: $id, seq: e.seq, edge_type: e.edge_type,
  from_key: e.from_key, to_key: e.to_key, confidence: e.confidence, provenance: e.provenance, doc: e.doc})`

	cypherLinkEdges = `UNWIND $edges AS e
MATCH (a:ExplanationNode {snapshot: $id, key: e.from_key})
MATCH (b:ExplanationNode {snapshot: $id, key: e.to_key})
CREATE (a)-[:EXPLAINS {edge_type: e.edge_type, seq: e.seq, confidence: e.confidence}]->(b)`

	cypherLoadSnapshot = `MATCH (s:Snapshot {id: $id})
RETURN s.query_json AS query, s.message_json AS message, s.results_json AS results,
  s.meta_json AS meta, s.has_graph AS has_graph`

	cypherLoadNodes = `MATCH (:Snapshot {id: $id})-[:HAS_NODE]->(n:ExplanationNode)
RETURN n.doc AS doc ORDER BY n.seq`

	cypherLoadEdges = `MATCH (:Snapshot {id: $id})-[:HAS_EDGE]->(e:ExplanationEdge)
RETURN e.doc AS doc ORDER BY e.seq`

	cypherList = `MATCH (s:Snapshot)
RETURN s.id AS id, s.query AS query, s.saved_at AS saved_at,
  s.node_count AS nodes, s.edge_count AS edges
ORDER BY s.saved_at DESC`
)

// Save replaces the snapshot stored under id with resp. All statements run
// in one transaction, so a failed save leaves the previous snapshot intact.
func (s *Store) Save(ctx context.Context, id string, resp domain.Response) error {
	id, err := checkID(id)
	if err != nil {
		return err
	}
	params, err := snapshotParams(id, resp, s.now().UTC())
	if err != nil {
		return err
	}
	nodes, err := nodeParams(resp.Nodes())
	if err != nil {
		return err
	}
	edges, err := edgeParams(resp.Edges())
	if err != nil {
		return err
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	steps := []struct {
		name   string
		cypher string
		params map[string]any
		skip   bool
	}{
		{"delete", cypherDelete, map[string]any{"id": id}, false},
		{"snapshot", cypherCreateSnapshot, params, false},
		{"nodes", cypherCreateNodes, map[string]any{"id": id, "nodes": nodes}, len(nodes) == 0},
		{"edges", cypherCreateEdges, map[string]any{"id": id, "edges": edges}, len(edges) == 0},
		{"link", cypherLinkEdges, map[string]any{"id": id, "edges": edges}, len(edges) == 0},
	}
	return sess.Write(ctx, func(tx querier) error {
		for _, st := range steps {
			if st.skip {
				continue
			}
			if err := exec(ctx, tx, st.cypher, st.params); err != nil {
				return fmt.Errorf("graph: save %s: %w", st.name, err)
			}
		}
		return nil
	})
}

// Load rebuilds the response stored under id, nodes and edges in their
// original order.
func (s *Store) Load(ctx context.Context, id string) (domain.Response, error) {
	id, err := checkID(id)
	if err != nil {
		return domain.Response{}, err
	}
	sess := s.session(ctx)
	defer sess.Close(ctx)

	params := map[string]any{"id": id}
	res, err := sess.Run(ctx, cypherLoadSnapshot, params)
	if err != nil {
		return domain.Response{}, fmt.Errorf("graph: load snapshot: %w", err)
	}
	if !res.Next(ctx) {
		if err := res.Err(); err != nil {
			return domain.Response{}, fmt.Errorf("graph: load snapshot: %w", err)
		}
		return domain.Response{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	rec := res.Record()
	doc := map[string]json.RawMessage{}
	for _, key := range []string{"query", "message", "results", "meta"} {
		if v := raw(rec, key); v != nil {
			doc[key] = v
		}
	}
	hasGraph, _, _ := neo4j.GetRecordValue[bool](rec, "has_graph")

	if hasGraph {
		nodes, err := docs(ctx, sess, cypherLoadNodes, params)
		if err != nil {
			return domain.Response{}, fmt.Errorf("graph: load nodes: %w", err)
		}
		edges, err := docs(ctx, sess, cypherLoadEdges, params)
		if err != nil {
			return domain.Response{}, fmt.Errorf("graph: load edges: %w", err)
		}
		g, err := json.Marshal(map[string][]json.RawMessage{"nodes": nodes, "edges": edges})
		if err != nil {
			return domain.Response{}, fmt.Errorf("graph: load: %w", err)
		}
		doc["explanation_graph"] = g
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return domain.Response{}, fmt.Errorf("graph: load: %w", err)
	}
	return domain.Decode(data)
}

// List returns every snapshot, newest first.
func (s *Store) List(ctx context.Context) ([]SnapshotInfo, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypherList, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: list: %w", err)
	}
	out := []SnapshotInfo{}
	for res.Next(ctx) {
		rec := res.Record()
		info := SnapshotInfo{}
		info.ID, _, _ = neo4j.GetRecordValue[string](rec, "id")
		info.Query, _, _ = neo4j.GetRecordValue[string](rec, "query")
		info.Nodes, _, _ = neo4j.GetRecordValue[int64](rec, "nodes")
		info.Edges, _, _ = neo4j.GetRecordValue[int64](rec, "edges")
		if at, _, err := neo4j.GetRecordValue[string](rec, "saved_at"); err == nil {
			info.SavedAt, _ = time.Parse(time.RFC3339Nano, at)
		}
		out = append(out, info)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("graph: list: %w", err)
	}
	return out, nil
}

// Delete removes the snapshot stored under id. Deleting a missing snapshot
// is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	id, err := checkID(id)
	if err != nil {
		return err
	}
	sess := s.session(ctx)
	defer sess.Close(ctx)
	if err := exec(ctx, sess, cypherDelete, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("graph: delete: %w", err)
	}
	return nil
}

func exec(ctx context.Context, sess querier, cypher string, params map[string]any) error {
	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	for res.Next(ctx) {
	}
	return res.Err()
}

func docs(ctx context.Context, sess querier, cypher string, params map[string]any) ([]json.RawMessage, error) {
	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	out := []json.RawMessage{}
	for res.Next(ctx) {
		if d := raw(res.Record(), "doc"); d != nil {
			out = append(out, d)
		}
	}
	return out, res.Err()
}

// raw returns a stored JSON string property, or nil when it is missing,
// null or corrupt.
func raw(rec *neo4j.Record, key string) json.RawMessage {
	s, isNil, err := neo4j.GetRecordValue[string](rec, key)
	if err != nil || isNil || s == "null" || !json.Valid([]byte(s)) {
		return nil
	}
	return json.RawMessage(s)
}

func snapshotParams(id string, resp domain.Response, at time.Time) (map[string]any, error) {
	query, err := marshal(resp.Query)
	if err != nil {
		return nil, err
	}
	message, err := marshal(resp.Message)
	if err != nil {
		return nil, err
	}
	results, err := marshal(resp.Results)
	if err != nil {
		return nil, err
	}
	meta, err := marshal(resp.Meta)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":           id,
		"query":        resp.Query.String(),
		"saved_at":     at.Format(time.RFC3339Nano),
		"query_json":   query,
		"message_json": message,
		"results_json": results,
		"meta_json":    meta,
		"has_graph":    resp.ExplanationGraph.Present(),
		"node_count":   int64(len(resp.Nodes())),
		"edge_count":   int64(len(resp.Edges())),
	}, nil
}

func nodeParams(nodes []domain.Node) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(nodes))
	for i, n := range nodes {
		doc, err := marshal(n)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]any{
			"seq":        int64(i),
			"key":        idKey(n.NodeID),
			"node_type":  text(n.NodeType),
			"label":      text(n.Label),
			"confidence": number(n.Confidence),
			"ref_id":     number(n.RefID),
			"doc":        doc,
		})
	}
	return out, nil
}

func edgeParams(edges []domain.Edge) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(edges))
	for i, e := range edges {
		doc, err := marshal(e)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]any{
			"seq":        int64(i),
			"edge_type":  text(e.EdgeType),
			"from_key":   idKey(e.FromNode),
			"to_key":     idKey(e.ToNode),
			"confidence": number(e.Confidence),
			"provenance": text(e.Provenance),
			"doc":        doc,
		})
	}
	return out, nil
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("graph: encode: %w", err)
	}
	return string(b), nil
}

// idKey is the JSON token of id, so "1" and 1 stay distinct keys.
// Absent ids have no key and never link.
func idKey(id domain.ID) any {
	if !id.Valid() {
		return nil
	}
	b, _ := id.MarshalJSON()
	return string(b)
}

func text(t domain.Text) any {
	if !t.Valid() {
		return nil
	}
	return t.String()
}

func number(n domain.Number) any {
	if !n.Valid() {
		return nil
	}
	return n.Or(0)
}

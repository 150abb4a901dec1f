// Package domain defines the raw search backend payload: the flat result
// list, the explanation graph and the response metadata. Every field is
// decoded leniently (see Text, Number, ID, Flag, List and Object) so a
// malformed payload degrades to missing values instead of failing.
package domain

// Node types emitted by the backend.
const (
	NodeQuery          = "query"
	NodeConcept        = "concept"
	NodeBundle         = "bundle"
	NodeEvidenceBundle = "evidence_bundle"
	NodeArtwork        = "artwork"
	NodeEssay          = "essay"
)

// Edge types emitted by the backend.
const (
	EdgeQuerySupportsConcept     = "query_supports_concept"
	EdgeConceptFormsBundle       = "concept_forms_bundle"
	EdgeBundleSupportedByArtwork = "bundle_supported_by_artwork"
	EdgeBundleSupportedByEssay   = "bundle_supported_by_essay"
)

// Edge provenance tags.
const (
	ProvenanceDetectedConcepts    = "v2_detected_concepts"
	ProvenanceBundleConstruction  = "bundle_construction"
	ProvenanceEmbeddingSimilarity = "embedding_similarity"
)

// Result types.
const (
	ResultArtwork = "artwork"
	ResultEssay   = "essay"
)

// Retrieval trace sources.
const (
	LexicalSourceMetadata    = "aggregated_metadata"
	LexicalSourceEssayText   = "essay_text"
	SemanticSourceArtwork    = "artwork_embedding"
	SemanticSourceEssayChunk = "essay_chunk"
)

// Response is the body of GET /api/search on the search backend.
type Response struct {
	Query            Text          `json:"query"`
	Message          Text          `json:"message"`
	Results          List[Result]  `json:"results"`
	ExplanationGraph Object[Graph] `json:"explanation_graph"`
	Meta             Object[Meta]  `json:"meta"`
}

// Nodes returns the graph nodes, empty when the graph is absent.
func (r Response) Nodes() []Node { return r.ExplanationGraph.Value().Nodes }

// Edges returns the graph edges, empty when the graph is absent.
func (r Response) Edges() []Edge { return r.ExplanationGraph.Value().Edges }

// Graph is the explanation graph: flat node and edge arrays.
type Graph struct {
	Nodes List[Node] `json:"nodes"`
	Edges List[Edge] `json:"edges"`
}

// Node is a typed graph node. RefID links artwork nodes to Result.ID.
type Node struct {
	NodeID     ID     `json:"node_id"`
	NodeType   Text   `json:"node_type"`
	Label      Text   `json:"label"`
	Confidence Number `json:"confidence"`
	RefID      Number `json:"ref_id"`
}

// Is reports whether the node has the given type.
func (n Node) Is(nodeType string) bool { return n.NodeType.Is(nodeType) }

// Edge is a typed, directed graph edge.
type Edge struct {
	EdgeType   Text   `json:"edge_type"`
	FromNode   ID     `json:"from_node"`
	ToNode     ID     `json:"to_node"`
	Confidence Number `json:"confidence"`
	Provenance Text   `json:"provenance"`
}

// Is reports whether the edge has the given type.
func (e Edge) Is(edgeType string) bool { return e.EdgeType.Is(edgeType) }

// Result is one entry of the flat ranked result list. Artworks use Title,
// Artist and ImageURL; essays use Title, Text, Source and ChunkIndex.
type Result struct {
	ID             Number                 `json:"id"`
	ResultType     Text                   `json:"result_type"`
	Title          Text                   `json:"title"`
	Text           Text                   `json:"text"`
	Artist         Text                   `json:"artist"`
	Source         Text                   `json:"source"`
	ImageURL       Text                   `json:"image_url"`
	ChunkIndex     Number                 `json:"chunk_index"`
	Score          Object[Score]          `json:"score"`
	RetrievalTrace Object[RetrievalTrace] `json:"retrieval_trace"`
}

// Is reports whether the result has the given type.
func (r Result) Is(resultType string) bool { return r.ResultType.Is(resultType) }

// Score holds the backend's pre-computed ranking scores.
type Score struct {
	FinalScore    Number `json:"final_score"`
	LexicalScore  Number `json:"lexical_score"`
	SemanticScore Number `json:"semantic_score"`
}

// RetrievalTrace describes how a result matched the query.
type RetrievalTrace struct {
	LexicalMatch  Object[LexicalMatch]  `json:"lexical_match"`
	SemanticMatch Object[SemanticMatch] `json:"semantic_match"`
}

// LexicalMatch is the full-text side of a retrieval trace.
type LexicalMatch struct {
	Source         Text         `json:"source"`
	MatchedLexemes List[string] `json:"matched_lexemes"`
	MatchedFields  List[string] `json:"matched_fields"`
}

// SemanticMatch is the embedding side of a retrieval trace.
type SemanticMatch struct {
	Similarity Number `json:"similarity"`
	Source     Text   `json:"source"`
}

// Meta carries the backend's explanation flags.
type Meta struct {
	ExplanationComplete      Flag `json:"explanation_complete"`
	UnexplainedResultsHidden Flag `json:"unexplained_results_hidden"`
}

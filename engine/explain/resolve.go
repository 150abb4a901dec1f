package explain

import (
	"fmt"

	"github.com/manas-droid/ArtAtlas/engine/confidence"
	"github.com/manas-droid/ArtAtlas/engine/domain"
	"github.com/manas-droid/ArtAtlas/pkg/fn"
)

// UntitledArtwork replaces blank artwork titles.
const UntitledArtwork = "Untitled artwork"

// Resolve builds one block per concept node, in node order. A concept is
// omitted when it has no query support edge, no bundle edge, or its bundle
// node is missing. Supporting artworks that cannot be resolved are dropped
// individually, so a block may carry an empty artwork list.
func Resolve(resp domain.Response) Model {
	m, _ := ResolveWithStats(resp)
	return m
}

// ResolveWithStats is Resolve plus counts of what was omitted.
func ResolveWithStats(resp domain.Response) (Model, Stats) {
	idx := newIndex(resp)
	var st Stats

	concepts := fn.Filter(resp.Nodes(), func(n domain.Node) bool { return n.Is(domain.NodeConcept) })
	blocks := fn.FilterMap(concepts, func(c domain.Node) (Block, bool) {
		st.Concepts++
		b, ok := idx.block(c, &st)
		if !ok {
			st.ConceptsSkipped++
		}
		return b, ok
	})

	meta := resp.Meta.Value()
	return Model{
		Query:             resp.Query.String(),
		ExplanationBlocks: blocks,
		Metadata: Metadata{
			ExplanationComplete:      meta.ExplanationComplete.Or(true),
			UnexplainedResultsHidden: meta.UnexplainedResultsHidden.Or(true),
		},
	}, st
}

// index holds id-keyed lookups built once per call. Every map keeps the
// first match in input order.
type index struct {
	nodes    map[domain.ID]domain.Node
	support  map[domain.ID]domain.Edge   // concept id -> query_supports_concept
	bundles  map[domain.ID]domain.Edge   // concept id -> concept_forms_bundle
	evidence map[domain.ID][]domain.Edge // bundle id -> bundle_supported_by_artwork
	artworks map[float64]domain.Result   // artwork result id -> result
}

func newIndex(resp domain.Response) *index {
	edges := resp.Edges()
	return &index{
		nodes: fn.IndexFirst(resp.Nodes(), func(n domain.Node) (domain.ID, bool) {
			return n.NodeID, n.NodeID.Valid()
		}),
		support:  fn.IndexFirst(edges, edgeKey(domain.EdgeQuerySupportsConcept, toNode)),
		bundles:  fn.IndexFirst(edges, edgeKey(domain.EdgeConceptFormsBundle, fromNode)),
		evidence: fn.GroupBy(edges, edgeKey(domain.EdgeBundleSupportedByArtwork, fromNode)),
		artworks: fn.IndexFirst(resp.Results, func(r domain.Result) (float64, bool) {
			return r.ID.Or(0), r.Is(domain.ResultArtwork) && r.ID.Valid()
		}),
	}
}

func toNode(e domain.Edge) domain.ID   { return e.ToNode }
func fromNode(e domain.Edge) domain.ID { return e.FromNode }

func edgeKey(edgeType string, end func(domain.Edge) domain.ID) func(domain.Edge) (domain.ID, bool) {
	return func(e domain.Edge) (domain.ID, bool) {
		id := end(e)
		return id, e.Is(edgeType) && id.Valid()
	}
}

func (x *index) block(concept domain.Node, st *Stats) (Block, bool) {
	supportEdge, ok := x.support[concept.NodeID]
	if !ok {
		return Block{}, false
	}
	formsEdge, ok := x.bundles[concept.NodeID]
	if !ok {
		return Block{}, false
	}
	bundle, ok := x.nodes[formsEdge.ToNode]
	if !ok {
		return Block{}, false
	}

	label := concept.Label.String()
	conceptScore := supportEdge.Confidence.Or(0)
	// Bundle nodes carry the mean of their support edges; fall back to the
	// structural edge when the backend omits it.
	strength := bundle.Confidence.Or(formsEdge.Confidence.Or(0))

	artworks := fn.FilterMap(x.evidence[formsEdge.ToNode], func(e domain.Edge) (Artwork, bool) {
		a, ok := x.artwork(e, label)
		if !ok {
			st.ArtworksDropped++
		}
		return a, ok
	})
	st.Artworks += len(artworks)

	return Block{
		Concept: Concept{
			ID:              domain.ParseNumber(concept.NodeID.String()).Or(0),
			NodeID:          concept.NodeID.String(),
			Label:           label,
			ConfidenceLabel: confidence.Classify(conceptScore),
			ConfidenceValue: conceptScore,
		},
		Evidence: Evidence{
			OverallStrengthLabel: confidence.Classify(strength),
			OverallStrengthValue: strength,
			Artworks:             artworks,
		},
	}, true
}

func (x *index) artwork(e domain.Edge, conceptLabel string) (Artwork, bool) {
	node, ok := x.nodes[e.ToNode]
	if !ok || !node.Is(domain.NodeArtwork) || !node.RefID.Valid() {
		return Artwork{}, false
	}
	refID := node.RefID.Or(0)
	res, ok := x.artworks[refID]
	if !ok {
		return Artwork{}, false
	}

	score := e.Confidence.Or(0)
	provenance := e.Provenance.String()
	return Artwork{
		ArtworkID:            refID,
		Title:                res.Title.Or(UntitledArtwork),
		ImageURL:             res.ImageURL.Or(""),
		SupportStrengthLabel: confidence.Classify(score),
		SupportStrengthValue: score,
		Provenance:           provenance,
		WhyThisArtwork:       Rationale(provenance, conceptLabel),
	}, true
}

// Rationale is the one-sentence reason shown under a supporting artwork.
// Unknown provenance yields "".
func Rationale(provenance, conceptLabel string) string {
	switch provenance {
	case domain.ProvenanceEmbeddingSimilarity:
		return fmt.Sprintf("visual features closely match known %s compositions", conceptLabel)
	default:
		return ""
	}
}

package explain

import (
	"fmt"
	"math"

	"github.com/manas-droid/ArtAtlas/engine/domain"
)

// Report lists structural problems found in an explanation graph. It is
// diagnostic only; Resolve never consults it.
type Report struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OK reports whether no errors were found.
func (r Report) OK() bool { return len(r.Errors) == 0 }

// ValidateOpts tunes Validate.
type ValidateOpts struct {
	// StrictProvenance turns unknown provenance tags into errors.
	StrictProvenance bool
	// RequireNoOrphans flags non-query nodes without incident edges.
	RequireNoOrphans bool
	// ConfidenceEps is the tolerance for the [0,1] range and the 1.0
	// structural edge check.
	ConfidenceEps float64
	// BundleConfidenceEps is the tolerance between a bundle's confidence
	// and the mean of its support edges.
	BundleConfidenceEps float64
}

// DefaultValidateOpts matches the backend's own graph checks, with
// provenance problems reported as warnings.
var DefaultValidateOpts = ValidateOpts{
	RequireNoOrphans:    true,
	ConfidenceEps:       1e-6,
	BundleConfidenceEps: 1e-4,
}

var knownNodeTypes = map[string]bool{
	domain.NodeQuery:          true,
	domain.NodeConcept:        true,
	domain.NodeBundle:         true,
	domain.NodeEvidenceBundle: true,
	domain.NodeArtwork:        true,
	domain.NodeEssay:          true,
}

var knownProvenance = map[string]bool{
	domain.ProvenanceDetectedConcepts:    true,
	domain.ProvenanceBundleConstruction:  true,
	domain.ProvenanceEmbeddingSimilarity: true,
}

// edgeEnds maps an edge type to the node kinds it must connect.
var edgeEnds = map[string][2]string{
	domain.EdgeQuerySupportsConcept:     {domain.NodeQuery, domain.NodeConcept},
	domain.EdgeConceptFormsBundle:       {domain.NodeConcept, domain.NodeBundle},
	domain.EdgeBundleSupportedByArtwork: {domain.NodeBundle, domain.NodeArtwork},
	domain.EdgeBundleSupportedByEssay:   {domain.NodeBundle, domain.NodeEssay},
}

// kind normalizes the bundle alias.
func kind(n domain.Node) string {
	if n.Is(domain.NodeEvidenceBundle) {
		return domain.NodeBundle
	}
	return n.NodeType.String()
}

func isSupport(e domain.Edge) bool {
	return e.Is(domain.EdgeBundleSupportedByArtwork) || e.Is(domain.EdgeBundleSupportedByEssay)
}

func countEdges(edges []domain.Edge, edgeType string) int {
	n := 0
	for _, e := range edges {
		if e.Is(edgeType) {
			n++
		}
	}
	return n
}

// Validate checks an explanation graph for the structure the resolver
// expects: typed endpoints, one query node, one support edge per concept,
// one bundle per concept, bundle confidences consistent with their support
// edges, and no cycles.
func Validate(g domain.Graph, opts ValidateOpts) Report {
	r := Report{Errors: []string{}, Warnings: []string{}}
	errorf := func(format string, args ...any) { r.Errors = append(r.Errors, fmt.Sprintf(format, args...)) }
	warnf := func(format string, args ...any) { r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...)) }

	byID := make(map[domain.ID]domain.Node, len(g.Nodes))
	order := make([]domain.ID, 0, len(g.Nodes))
	for i, n := range g.Nodes {
		if !n.NodeID.Valid() {
			errorf("Node[%d] has no node_id.", i)
			continue
		}
		if _, dup := byID[n.NodeID]; dup {
			errorf("Duplicate node_id: '%s'.", n.NodeID)
			continue
		}
		if !knownNodeTypes[n.NodeType.String()] {
			errorf("Node '%s' has invalid node_type '%s'.", n.NodeID, n.NodeType)
		}
		byID[n.NodeID] = n
		order = append(order, n.NodeID)
	}

	var queries []domain.ID
	for _, id := range order {
		if byID[id].Is(domain.NodeQuery) {
			queries = append(queries, id)
		}
	}
	if len(queries) != 1 {
		errorf("Graph must contain exactly 1 query node; found %d.", len(queries))
	}

	involved := make(map[domain.ID]bool)
	incoming := make(map[domain.ID][]domain.Edge)
	outgoing := make(map[domain.ID][]domain.Edge)

	for i, e := range g.Edges {
		et := e.EdgeType.String()
		if _, ok := edgeEnds[et]; !ok {
			errorf("Edge[%d] has invalid edge_type '%s'.", i, et)
		}
		from, okFrom := byID[e.FromNode]
		if !okFrom {
			errorf("Edge[%d] has invalid from_node '%s'.", i, e.FromNode)
			continue
		}
		to, okTo := byID[e.ToNode]
		if !okTo {
			errorf("Edge[%d] has invalid to_node '%s'.", i, e.ToNode)
			continue
		}

		involved[e.FromNode] = true
		involved[e.ToNode] = true
		incoming[e.ToNode] = append(incoming[e.ToNode], e)
		outgoing[e.FromNode] = append(outgoing[e.FromNode], e)

		if ends, ok := edgeEnds[et]; ok && (kind(from) != ends[0] || kind(to) != ends[1]) {
			errorf("Edge[%d] '%s' must connect %s→%s, but connects %s→%s (%s→%s).",
				i, et, ends[0], ends[1], from.NodeType, to.NodeType, e.FromNode, e.ToNode)
		}

		if !e.Confidence.Valid() {
			errorf("Edge[%d] '%s' missing confidence.", i, et)
		} else if c := e.Confidence.Or(0); c < -opts.ConfidenceEps || c > 1+opts.ConfidenceEps {
			errorf("Edge[%d] '%s' confidence out of range [0,1]: %g.", i, et, c)
		} else if e.Is(domain.EdgeConceptFormsBundle) && math.Abs(c-1) > opts.ConfidenceEps {
			errorf("Edge[%d] 'concept_forms_bundle' confidence must be 1.0; got %g.", i, c)
		}

		prov := e.Provenance.String()
		switch {
		case prov == "":
			errorf("Edge[%d] '%s' missing/invalid provenance.", i, et)
		case !knownProvenance[prov] && opts.StrictProvenance:
			errorf("Edge[%d] provenance '%s' not allowed.", i, prov)
		case !knownProvenance[prov]:
			warnf("Edge[%d] provenance '%s' is non-standard.", i, prov)
		}
	}

	if opts.RequireNoOrphans {
		for _, id := range order {
			if n := byID[id]; !n.Is(domain.NodeQuery) && !involved[id] {
				errorf("Orphan node '%s' (node_type=%s) has no incident edges.", id, n.NodeType)
			}
		}
	}

	for _, id := range order {
		n := byID[id]
		switch kind(n) {
		case domain.NodeBundle:
			if c := countEdges(incoming[id], domain.EdgeConceptFormsBundle); c != 1 {
				errorf("Bundle '%s' must have exactly 1 incoming 'concept_forms_bundle' edge; found %d.", id, c)
			}
			var support []domain.Edge
			for _, e := range outgoing[id] {
				if isSupport(e) {
					support = append(support, e)
				}
			}
			if len(support) == 0 {
				errorf("Bundle '%s' must have at least 1 outgoing support edge to artwork/essay.", id)
			}
			if !n.Confidence.Valid() {
				errorf("Bundle node '%s' missing 'confidence'.", id)
				continue
			}
			var sum float64
			var count int
			for _, e := range support {
				if e.Confidence.Valid() {
					sum += e.Confidence.Or(0)
					count++
				}
			}
			if count > 0 {
				mean := sum / float64(count)
				if bc := n.Confidence.Or(0); math.Abs(bc-mean) > opts.BundleConfidenceEps {
					errorf("Bundle '%s' confidence (%.6f) must equal mean of its support edge confidences (%.6f).", id, bc, mean)
				}
			}
		case domain.NodeConcept:
			if c := countEdges(incoming[id], domain.EdgeQuerySupportsConcept); c != 1 {
				errorf("Concept '%s' must have exactly 1 incoming 'query_supports_concept' edge; found %d.", id, c)
			}
			if c := countEdges(outgoing[id], domain.EdgeConceptFormsBundle); c != 1 {
				errorf("Concept '%s' must have exactly 1 outgoing 'concept_forms_bundle' edge; found %d.", id, c)
			}
		case domain.NodeArtwork, domain.NodeEssay:
			supported := false
			for _, e := range incoming[id] {
				if isSupport(e) {
					supported = true
					break
				}
			}
			if !supported {
				errorf("Evidence node '%s' must have at least 1 incoming support edge.", id)
			}
		}
	}

	if hasCycle(order, outgoing) {
		errorf("Graph must be acyclic, but a cycle was detected.")
	}

	if len(queries) == 1 && countEdges(outgoing[queries[0]], domain.EdgeQuerySupportsConcept) == 0 {
		warnf("Query node has no outgoing 'query_supports_concept' edges.")
	}

	return r
}

// hasCycle runs a three-color DFS over the known nodes.
func hasCycle(order []domain.ID, outgoing map[domain.ID][]domain.Edge) bool {
	const (
		white = iota
		gray
		black
	)
	color := make(map[domain.ID]int, len(order))

	var visit func(domain.ID) bool
	visit = func(u domain.ID) bool {
		color[u] = gray
		for _, e := range outgoing[u] {
			switch color[e.ToNode] {
			case gray:
				return true
			case white:
				if visit(e.ToNode) {
					return true
				}
			}
		}
		color[u] = black
		return false
	}

	for _, id := range order {
		if color[id] == white && visit(id) {
			return true
		}
	}
	return false
}

// Package explain resolves the backend explanation graph into
// concept → evidence → artwork blocks that tell the user why results were
// surfaced.
package explain

import "github.com/manas-droid/ArtAtlas/engine/confidence"

// Model is the explanation side of the display model.
type Model struct {
	Query             string   `json:"query"`
	ExplanationBlocks []Block  `json:"explanationBlocks"`
	Metadata          Metadata `json:"metadata"`
}

// Metadata echoes the backend's explanation flags.
type Metadata struct {
	ExplanationComplete      bool `json:"explanationComplete"`
	UnexplainedResultsHidden bool `json:"unexplainedResultsHidden"`
}

// Block explains one concept with the evidence bundle behind it.
type Block struct {
	Concept  Concept  `json:"concept"`
	Evidence Evidence `json:"evidence"`
}

// Concept is a detected concept and how strongly the query supports it.
type Concept struct {
	ID              float64          `json:"id"`
	NodeID          string           `json:"nodeId"`
	Label           string           `json:"label"`
	ConfidenceLabel confidence.Label `json:"confidenceLabel"`
	ConfidenceValue float64          `json:"confidenceValue"`
}

// Evidence is the bundle of artworks supporting a concept.
type Evidence struct {
	OverallStrengthLabel confidence.Label `json:"overallStrengthLabel"`
	OverallStrengthValue float64          `json:"overallStrengthValue"`
	Artworks             []Artwork        `json:"artworks"`
}

// Artwork is one supporting artwork inside an evidence bundle.
type Artwork struct {
	ArtworkID            float64          `json:"artworkId"`
	Title                string           `json:"title"`
	ImageURL             string           `json:"imageUrl"`
	SupportStrengthLabel confidence.Label `json:"supportStrengthLabel"`
	SupportStrengthValue float64          `json:"supportStrengthValue"`
	Provenance           string           `json:"provenance"`
	WhyThisArtwork       string           `json:"whyThisArtwork"`
}

// Confidence implements confidence.Scored.
func (a Artwork) Confidence() float64 { return a.SupportStrengthValue }

// Stats counts what a resolution pass omitted.
type Stats struct {
	Concepts        int
	ConceptsSkipped int
	Artworks        int
	ArtworksDropped int
}

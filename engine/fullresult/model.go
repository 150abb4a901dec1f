// Package fullresult flattens the backend's ranked result list into
// artwork and essay records, each labeled and annotated with a readable
// summary of how it matched the query.
package fullresult

import "github.com/manas-droid/ArtAtlas/engine/confidence"

// Model is the "full results" side of the display model.
type Model struct {
	Artwork []ArtworkResult `json:"artwork"`
	Essay   []EssayResult   `json:"essay"`
}

// Kind distinguishes the two result variants.
type Kind string

const (
	KindArtwork Kind = "artwork"
	KindEssay   Kind = "essay"
)

// Item is implemented only by ArtworkResult and EssayResult.
type Item interface {
	confidence.Scored
	Kind() Kind
	RetrievalTrace() Trace
	item()
}

// ArtworkResult is an artwork in the full result list.
type ArtworkResult struct {
	ArtworkID       float64          `json:"artworkId"`
	ArtistName      string           `json:"artistName"`
	ArtworkTitle    string           `json:"artworkTitle"`
	ImageURL        string           `json:"imageUrl"`
	ConfidenceValue float64          `json:"confidenceValue"`
	ConfidenceLabel confidence.Label `json:"confidenceLabel"`
	Trace           Trace            `json:"retrievalTrace"`
}

func (a ArtworkResult) Kind() Kind            { return KindArtwork }
func (a ArtworkResult) Confidence() float64   { return a.ConfidenceValue }
func (a ArtworkResult) RetrievalTrace() Trace { return a.Trace }
func (ArtworkResult) item()                   {}

// EssayResult is an essay chunk in the full result list. ChunkIndex is nil
// when the backend did not send one.
type EssayResult struct {
	EssayID         float64          `json:"essayId"`
	EssayTitle      string           `json:"essayTitle"`
	EssayText       string           `json:"essayText"`
	Source          string           `json:"source"`
	ChunkIndex      *int64           `json:"chunkIndex,omitempty"`
	ConfidenceValue float64          `json:"confidenceValue"`
	ConfidenceLabel confidence.Label `json:"confidenceLabel"`
	Trace           Trace            `json:"retrievalTrace"`
}

func (e EssayResult) Kind() Kind            { return KindEssay }
func (e EssayResult) Confidence() float64   { return e.ConfidenceValue }
func (e EssayResult) RetrievalTrace() Trace { return e.Trace }
func (EssayResult) item()                   {}

// Trace summarizes a raw retrieval trace. Either side may be nil.
type Trace struct {
	LexicalMatch    *LexicalTrace  `json:"lexicalMatch,omitempty"`
	SemanticalMatch *SemanticTrace `json:"semanticalMatch,omitempty"`
}

// LexicalTrace is the full-text match summary.
type LexicalTrace struct {
	Source         string   `json:"source"`
	MatchedLexemes []string `json:"matchedLexemes"`
	MatchedFields  []string `json:"matchedFields"`
}

// SemanticTrace is the embedding match summary.
type SemanticTrace struct {
	Source          string           `json:"source"`
	SimilarityValue float64          `json:"similarityValue"`
	SimilarityLabel confidence.Label `json:"similarityLabel"`
}

// Items returns artworks followed by essays.
func (m Model) Items() []Item {
	out := make([]Item, 0, len(m.Artwork)+len(m.Essay))
	for _, a := range m.Artwork {
		out = append(out, a)
	}
	for _, e := range m.Essay {
		out = append(out, e)
	}
	return out
}

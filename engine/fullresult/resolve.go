package fullresult

import (
	"github.com/manas-droid/ArtAtlas/engine/confidence"
	"github.com/manas-droid/ArtAtlas/engine/domain"
	"github.com/manas-droid/ArtAtlas/pkg/fn"
)

var lexicalSources = map[string]string{
	domain.LexicalSourceMetadata:  "aggregated artwork metadata",
	domain.LexicalSourceEssayText: "essay text",
}

var semanticSources = map[string]string{
	domain.SemanticSourceArtwork:    "artwork metadata",
	domain.SemanticSourceEssayChunk: "essay chunk",
}

// LexicalSource returns the readable name of a lexical trace source.
// Unknown sources pass through unchanged.
func LexicalSource(src string) string { return sourceLabel(lexicalSources, src) }

// SemanticSource returns the readable name of a semantic trace source.
// Unknown sources pass through unchanged.
func SemanticSource(src string) string { return sourceLabel(semanticSources, src) }

func sourceLabel(table map[string]string, src string) string {
	if label, ok := table[src]; ok {
		return label
	}
	return src
}

// Resolve partitions results into artworks and essays, preserving order.
// Results of any other type are dropped.
func Resolve(results []domain.Result) Model {
	if len(results) == 0 {
		return Model{Artwork: []ArtworkResult{}, Essay: []EssayResult{}}
	}
	return Model{
		Artwork: fn.FilterMap(results, func(r domain.Result) (ArtworkResult, bool) {
			if !r.Is(domain.ResultArtwork) {
				return ArtworkResult{}, false
			}
			return artwork(r), true
		}),
		Essay: fn.FilterMap(results, func(r domain.Result) (EssayResult, bool) {
			if !r.Is(domain.ResultEssay) {
				return EssayResult{}, false
			}
			return essay(r), true
		}),
	}
}

func finalScore(r domain.Result) float64 { return r.Score.Value().FinalScore.Or(0) }

func artwork(r domain.Result) ArtworkResult {
	score := finalScore(r)
	return ArtworkResult{
		ArtworkID:       r.ID.Or(0),
		ArtistName:      r.Artist.String(),
		ArtworkTitle:    r.Title.String(),
		ImageURL:        r.ImageURL.String(),
		ConfidenceValue: score,
		ConfidenceLabel: confidence.Classify(score),
		Trace:           trace(r.RetrievalTrace),
	}
}

func essay(r domain.Result) EssayResult {
	score := finalScore(r)
	e := EssayResult{
		EssayID:         r.ID.Or(0),
		EssayTitle:      r.Title.String(),
		EssayText:       r.Text.String(),
		Source:          r.Source.String(),
		ConfidenceValue: score,
		ConfidenceLabel: confidence.Classify(score),
		Trace:           trace(r.RetrievalTrace),
	}
	if r.ChunkIndex.Valid() {
		idx := int64(r.ChunkIndex.Or(0))
		e.ChunkIndex = &idx
	}
	return e
}

func trace(raw domain.Object[domain.RetrievalTrace]) Trace {
	var t Trace
	rt, ok := raw.Get()
	if !ok {
		return t
	}
	if lex, ok := rt.LexicalMatch.Get(); ok {
		t.LexicalMatch = &LexicalTrace{
			Source:         LexicalSource(lex.Source.String()),
			MatchedLexemes: nonNil(lex.MatchedLexemes),
			MatchedFields:  nonNil(lex.MatchedFields),
		}
	}
	if sem, ok := rt.SemanticMatch.Get(); ok {
		sim := sem.Similarity.Or(0)
		t.SemanticalMatch = &SemanticTrace{
			Source:          SemanticSource(sem.Source.String()),
			SimilarityValue: sim,
			SimilarityLabel: confidence.Classify(sim),
		}
	}
	return t
}

func nonNil(l domain.List[string]) []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}

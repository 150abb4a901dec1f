// Package view composes the explanation and full-result models into the
// single model the display layer consumes.
package view

import (
	"cmp"
	"slices"

	"github.com/manas-droid/ArtAtlas/engine/domain"
	"github.com/manas-droid/ArtAtlas/engine/explain"
	"github.com/manas-droid/ArtAtlas/engine/fullresult"
)

// UIModel is everything the display layer renders for one query.
type UIModel struct {
	ExplanationModel explain.Model    `json:"explanationModel"`
	FullResultModel  fullresult.Model `json:"fullResultModel"`
}

// Compose resolves both models from one backend response.
func Compose(resp domain.Response) UIModel {
	return UIModel{
		ExplanationModel: explain.Resolve(resp),
		FullResultModel:  fullresult.Resolve(resp.Results),
	}
}

// Entry is one row of the combined "full results" list.
type Entry struct {
	Kind  fullresult.Kind `json:"kind"`
	Score float64         `json:"score"`
	Item  fullresult.Item `json:"item"`
}

// Ranked lists artworks then essays, stably sorted by descending
// confidence. Equal scores keep their relative order.
func Ranked(ui UIModel) []Entry {
	items := ui.FullResultModel.Items()
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		out = append(out, Entry{Kind: it.Kind(), Score: it.Confidence(), Item: it})
	}
	slices.SortStableFunc(out, func(a, b Entry) int { return cmp.Compare(b.Score, a.Score) })
	return out
}

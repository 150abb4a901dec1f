package view

import (
	"context"

	"github.com/manas-droid/ArtAtlas/engine/domain"
	"github.com/manas-droid/ArtAtlas/engine/explain"
	"github.com/manas-droid/ArtAtlas/engine/fullresult"
	"github.com/manas-droid/ArtAtlas/pkg/fn"
)

// Resolution is a composed model plus the diagnostics gathered while
// building it.
type Resolution struct {
	UI     UIModel
	Ranked []Entry
	Stats  explain.Stats
	Report explain.Report
}

// Analyze composes resp and collects resolver stats and graph diagnostics.
// The UI model is identical to Compose(resp).
func Analyze(resp domain.Response) Resolution {
	m, stats := explain.ResolveWithStats(resp)
	ui := UIModel{ExplanationModel: m, FullResultModel: fullresult.Resolve(resp.Results)}
	return Resolution{
		UI:     ui,
		Ranked: Ranked(ui),
		Stats:  stats,
		Report: explain.Validate(resp.ExplanationGraph.Value(), explain.DefaultValidateOpts),
	}
}

// DecodeStage parses a raw backend payload.
func DecodeStage(_ context.Context, data []byte) fn.Result[domain.Response] {
	return fn.FromPair(domain.Decode(data))
}

// Pipeline decodes and analyzes a raw payload under a single span.
func Pipeline() fn.Stage[[]byte, Resolution] {
	return fn.TracedStage("view.resolve",
		fn.Then(fn.Stage[[]byte, domain.Response](DecodeStage),
			fn.TracedStage("view.analyze", fn.MapStage(Analyze))))
}

// Recorder receives per-resolution counts.
type Recorder interface {
	Resolution(blocks, conceptsSkipped, artworksDropped, graphErrors, graphWarnings int)
}

// Record reports res to rec; a nil rec is ignored.
func Record(rec Recorder, res Resolution) {
	if rec == nil {
		return
	}
	rec.Resolution(
		len(res.UI.ExplanationModel.ExplanationBlocks),
		res.Stats.ConceptsSkipped,
		res.Stats.ArtworksDropped,
		len(res.Report.Errors),
		len(res.Report.Warnings),
	)
}

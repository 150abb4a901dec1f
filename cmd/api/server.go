package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/manas-droid/ArtAtlas/engine/domain"
	"github.com/manas-droid/ArtAtlas/engine/explain"
	"github.com/manas-droid/ArtAtlas/engine/fullresult"
	"github.com/manas-droid/ArtAtlas/engine/search"
	"github.com/manas-droid/ArtAtlas/engine/view"
	"github.com/manas-droid/ArtAtlas/pkg/fn"
	"github.com/manas-droid/ArtAtlas/pkg/metrics"
	"github.com/manas-droid/ArtAtlas/pkg/mid"
)

// maxBody caps request bodies on the resolve and validate routes.
const maxBody = 8 << 20

// Searcher fetches a raw backend response.
type Searcher interface {
	Search(ctx context.Context, query string) (domain.Response, error)
}

// EventPublisher announces completed resolutions.
type EventPublisher interface {
	SearchResolved(ctx context.Context, ui view.UIModel) error
}

// SearchResponse is the JSON body of /api/search and /api/resolve.
type SearchResponse struct {
	Query            string           `json:"query"`
	ExplanationModel explain.Model    `json:"explanationModel"`
	FullResultModel  fullresult.Model `json:"fullResultModel"`
	Ranked           []view.Entry     `json:"ranked"`
}

func newSearchResponse(res view.Resolution) SearchResponse {
	return SearchResponse{
		Query:            res.UI.ExplanationModel.Query,
		ExplanationModel: res.UI.ExplanationModel,
		FullResultModel:  res.UI.FullResultModel,
		Ranked:           res.Ranked,
	}
}

type server struct {
	search    Searcher
	events    EventPublisher
	metrics   *metrics.Set
	logger    *slog.Logger
	fromResp  fn.Stage[domain.Response, view.Resolution]
	fromBytes fn.Stage[[]byte, view.Resolution]
}

// newServer wires the handlers. events may be nil.
func newServer(s Searcher, events EventPublisher, set *metrics.Set, logger *slog.Logger) *server {
	srv := &server{search: s, events: events, metrics: set, logger: logger}
	observe := fn.TapStage(srv.observe)
	srv.fromResp = fn.Then(fn.TracedStage("view.analyze", fn.MapStage(view.Analyze)), observe)
	srv.fromBytes = fn.Then(view.Pipeline(), observe)
	return srv
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/resolve", s.handleResolve)
	mux.HandleFunc("POST /api/validate", s.handleValidate)
	mux.Handle("GET /metrics", s.metrics.Registry().Handler())
	return mux
}

// handler is routes() behind the full middleware chain. Middleware between
// Logger and the mux must not replace the request, or Logger loses the
// matched pattern.
func (s *server) handler(corsOrigin string, rps float64, burst int) http.Handler {
	return mid.Chain(s.routes(),
		mid.Recover(s.logger),
		mid.OTel("artatlas-api"),
		mid.RequestID(),
		mid.Logger(s.logger, s.metrics.Request),
		mid.CORS(corsOrigin),
		mid.RateLimit(rps, burst),
	)
}

// observe records metrics, logs graph diagnostics and publishes the event
// for every successful resolution.
func (s *server) observe(ctx context.Context, res view.Resolution) {
	view.Record(s.metrics, res)
	log := s.logger.With("request_id", mid.RequestIDFrom(ctx), "query", res.UI.ExplanationModel.Query)
	if n := len(res.Report.Errors); n > 0 {
		log.Warn("explanation graph has errors", "count", n, "first", res.Report.Errors[0])
	}
	if n := len(res.Report.Warnings); n > 0 {
		log.Debug("explanation graph has warnings", "count", n, "warnings", res.Report.Warnings)
	}
	if res.Stats.ConceptsSkipped > 0 || res.Stats.ArtworksDropped > 0 {
		log.Debug("explanation pruned",
			"concepts_skipped", res.Stats.ConceptsSkipped,
			"artworks_dropped", res.Stats.ArtworksDropped,
		)
	}
	if s.events == nil {
		return
	}
	if err := s.events.SearchResolved(ctx, res.UI); err != nil {
		log.Warn("publish search resolved failed", "err", err)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	mid.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	resp, err := s.search.Search(r.Context(), r.URL.Query().Get("q"))
	var qe *domain.QueryError
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		mid.WriteError(w, http.StatusBadRequest, "query is required")
		return
	case errors.As(err, &qe):
		mid.WriteError(w, http.StatusBadRequest, qe.Err.Error())
		return
	case err != nil:
		mid.WriteError(w, http.StatusBadGateway, search.TransportMessage)
		return
	}
	res, err := s.fromResp(r.Context(), resp).Unwrap()
	if err != nil {
		s.logger.Error("resolve failed", "err", err)
		mid.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	mid.WriteJSON(w, http.StatusOK, newSearchResponse(res))
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			mid.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			mid.WriteError(w, http.StatusBadRequest, "invalid request body")
		}
		return nil, false
	}
	return body, true
}

func (s *server) handleResolve(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	res, err := s.fromBytes(r.Context(), body).Unwrap()
	if errors.Is(err, domain.ErrMalformedJSON) {
		mid.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err != nil {
		s.logger.Error("resolve failed", "err", err)
		mid.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	mid.WriteJSON(w, http.StatusOK, newSearchResponse(res))
}

// handleValidate reports graph diagnostics. ?strict=true turns provenance
// warnings into errors.
func (s *server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	resp, err := domain.Decode(body)
	if err != nil {
		mid.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	opts := explain.DefaultValidateOpts
	if strict, err := strconv.ParseBool(r.URL.Query().Get("strict")); err == nil {
		opts.StrictProvenance = strict
	}
	mid.WriteJSON(w, http.StatusOK, explain.Validate(resp.ExplanationGraph.Value(), opts))
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/goldensig/goldensig/server/internal/chart"
	"github.com/goldensig/goldensig/server/internal/compute"
	"github.com/goldensig/goldensig/server/internal/dataset"
	"github.com/goldensig/goldensig/server/internal/ledger"
	"github.com/goldensig/goldensig/server/internal/session"
	"github.com/goldensig/goldensig/server/internal/ws"
)

// Options wires the handler to its collaborators. Sessions is required.
type Options struct {
	Sessions *session.Store

	// Ledger serves approval history. Nil behaves like the "none" backend.
	Ledger *ledger.Ledger

	// Hub serves /ws/sessions/{id}. Nil disables the stream.
	Hub *ws.Hub

	// Auth wraps every /api/v1 and /ws route except health. Nil allows all.
	Auth func(http.Handler) http.Handler

	// AllowedOrigins configures CORS. Empty disables the CORS middleware.
	AllowedOrigins []string
}

// Handler serves the REST API, the metrics endpoint and the session stream.
type Handler struct {
	sessions  *session.Store
	ledger    *ledger.Ledger
	hub       *ws.Hub
	metrics   metrics
	startedAt time.Time
	router    chi.Router
}

// New creates a Handler and registers all routes.
func New(opts Options) *Handler {
	h := &Handler{
		sessions:  opts.Sessions,
		ledger:    opts.Ledger,
		hub:       opts.Hub,
		startedAt: time.Now(),
	}
	if h.ledger == nil {
		h.ledger = &ledger.Ledger{}
	}
	authMW := opts.Auth
	if authMW == nil {
		authMW = func(next http.Handler) http.Handler { return next }
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Api-Key", "Authorization"},
			ExposedHeaders: []string{"Content-Disposition"},
			MaxAge:         300,
		}))
	}

	r.Get("/api/v1/health", h.health)
	r.Get("/metrics", h.serveMetrics)

	r.Group(func(pr chi.Router) {
		pr.Use(authMW)

		pr.Route("/api/v1", func(ar chi.Router) {
			ar.Get("/batches", h.listBatches)
			ar.Get("/batches/{batchID}", h.getBatch)
			ar.Get("/summary", h.summary)
			ar.Get("/export", h.export)
			ar.Get("/trend", h.trend)
			ar.Get("/trend.png", h.trendPNG)

			ar.Post("/sessions", h.createSession)
			ar.Route("/sessions/{id}", func(sr chi.Router) {
				sr.Get("/", h.getSession)
				sr.Delete("/", h.deleteSession)
				sr.Get("/evaluate/{batchID}", h.evaluate)
				sr.Post("/approve", h.approve)
				sr.Post("/reset", h.reset)
				sr.Get("/approvals", h.approvals)
			})
		})

		if h.hub != nil {
			pr.Get("/ws/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
				h.hub.Serve(w, r, chi.URLParam(r, "id"))
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// --- dataset routes ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Sessions:      h.sessions.Count(),
		Ledger:        string(h.ledger.Backend()),
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	}
	if h.hub != nil {
		resp.StreamClients = h.hub.Count()
	}
	if ds := h.sessions.Dataset(); ds != nil {
		resp.DatasetRows = ds.Len()
		resp.DatasetSource = ds.Source
		resp.LoadedAt = ds.LoadedAt
	} else {
		resp.Status = "no_dataset"
	}
	jsonResp(w, http.StatusOK, resp)
}

// dataset returns the current dataset or writes 503.
func (h *Handler) dataset(w http.ResponseWriter) (*compute.Dataset, bool) {
	ds := h.sessions.Dataset()
	if ds == nil {
		writeServiceError(w, session.ErrNoDataset)
		return nil, false
	}
	return ds, true
}

// listBatches returns GET /api/v1/batches, the full scored dataset.
func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, DatasetResponse{
		Source:        ds.Source,
		LoadedAt:      ds.LoadedAt,
		Columns:       dataset.Header(ds),
		Rows:          ds.Len(),
		Ranges:        ds.Ranges(),
		InitialGolden: compute.SelectInitial(ds).BatchID,
		Batches:       ds.Batches(),
	})
}

// getBatch returns GET /api/v1/batches/{batchID}.
func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w)
	if !ok {
		return
	}
	b, err := ds.Lookup(chi.URLParam(r, "batchID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, b)
}

// summary returns GET /api/v1/summary, per-column statistics.
func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, compute.Summarize(ds))
}

// export returns GET /api/v1/export?format=csv|xlsx.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w)
	if !ok {
		return
	}

	var write func(http.ResponseWriter) error
	format := r.URL.Query().Get("format")
	switch format {
	case "", "csv":
		format = "csv"
		w.Header().Set("Content-Type", "text/csv")
		write = func(w http.ResponseWriter) error { return dataset.WriteCSV(w, ds) }
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		write = func(w http.ResponseWriter) error { return dataset.WriteXLSX(w, ds) }
	default:
		jsonErr(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q: want csv|xlsx", format))
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="scored_batches.%s"`, format))
	if err := write(w); err != nil {
		// Headers are gone by now; the client sees a truncated body.
		slog.Warn("api: export failed", "format", format, "err", err)
		return
	}
	h.metrics.exports.Add(1)
}

// trend returns GET /api/v1/trend.
func (h *Handler) trend(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, chart.Trend(ds))
}

// trendPNG returns GET /api/v1/trend.png. With ?session={id} the chart is
// drawn from that session's dataset and marks its golden.
func (h *Handler) trendPNG(w http.ResponseWriter, r *http.Request) {
	var (
		ds     *compute.Dataset
		golden string
	)
	if id := r.URL.Query().Get("session"); id != "" {
		sess, err := h.sessions.Session(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		ds, golden = sess.Dataset, sess.Golden.BatchID
	} else {
		var ok bool
		if ds, ok = h.dataset(w); !ok {
			return
		}
		golden = compute.SelectInitial(ds).BatchID
	}

	w.Header().Set("Content-Type", "image/png")
	if err := chart.WritePNG(w, chart.Trend(ds), golden); err != nil {
		w.Header().Del("Content-Type")
		writeServiceError(w, err)
	}
}

// --- session routes ---------------------------------------------------------

// createSession returns POST /api/v1/sessions.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	ov, err := h.sessions.Create()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.metrics.sessionsCreated.Add(1)
	w.Header().Set("Location", "/api/v1/sessions/"+ov.SessionID)
	jsonResp(w, http.StatusCreated, ov)
}

// getSession returns GET /api/v1/sessions/{id}, the golden overview.
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	ov, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, ov)
}

// deleteSession returns DELETE /api/v1/sessions/{id}.
func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.Delete(id); err != nil {
		writeServiceError(w, err)
		return
	}
	if h.hub != nil {
		h.hub.Notify(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// evaluate returns GET /api/v1/sessions/{id}/evaluate/{batchID}.
func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	ev, err := h.sessions.Evaluate(chi.URLParam(r, "id"), chi.URLParam(r, "batchID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.metrics.evaluations[verdictIndex(ev.Verdict)].Add(1)
	jsonResp(w, http.StatusOK, EvaluationResponse{
		Evaluation:  ev,
		Diagnostics: computeDiagnostics(ev),
	})
}

// approve returns POST /api/v1/sessions/{id}/approve.
func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.BatchID == "" {
		jsonErr(w, http.StatusBadRequest, "batch_id is required")
		return
	}

	id := chi.URLParam(r, "id")
	a, err := h.sessions.Approve(r.Context(), id, req.BatchID)
	if err != nil {
		if errors.Is(err, session.ErrApprovalRejected) {
			h.metrics.rejections.Add(1)
		}
		writeServiceError(w, err)
		return
	}
	h.metrics.approvals.Add(1)

	ov, err := h.sessions.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, ApproveResponse{Approval: a, Golden: ov})
}

// reset returns POST /api/v1/sessions/{id}/reset.
func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ov, err := h.sessions.Reset(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if h.hub != nil {
		h.hub.Notify(id)
	}
	jsonResp(w, http.StatusOK, ov)
}

// approvals returns GET /api/v1/sessions/{id}/approvals?limit=N. History
// outlives the session, so an evicted id still lists its approvals.
func (h *Handler) approvals(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := h.ledger.List(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, entries)
}

// serveMetrics returns GET /metrics in the Prometheus text format.
func (h *Handler) serveMetrics(w http.ResponseWriter, r *http.Request) {
	g := gaugeValues{sessions: h.sessions.Count()}
	if h.hub != nil {
		g.streamClients = h.hub.Count()
	}
	if ds := h.sessions.Dataset(); ds != nil {
		g.datasetRows = ds.Len()
		g.goldenScore = compute.SelectInitial(ds).OptimizationScore
	}
	serveMetrics(w, h.metrics.families(g))
}

// --- helpers ----------------------------------------------------------------

// jsonResp encodes v before writing the status, so an unencodable value
// becomes a 500 instead of a 200 with a broken body.
func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("api: encode response", "err", err)
		body, code = []byte(`{"error":"internal error: response encoding failed"}`), http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(append(body, '\n')) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// writeServiceError maps domain errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, compute.ErrUnknownBatch):
		jsonErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrApprovalRejected):
		jsonErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrNoDataset):
		jsonErr(w, http.StatusServiceUnavailable, err.Error())
	default:
		jsonErr(w, http.StatusInternalServerError, err.Error())
	}
}

package api

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goldensig/goldensig/server/internal/dataset"
	"github.com/goldensig/goldensig/server/internal/session"
)

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	header http.Header
	code   int
}

func (w *brokenWriter) Header() http.Header { return w.header }
func (w *brokenWriter) WriteHeader(code int) { w.code = code }
func (w *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestExport_WriteFailureIsLogged(t *testing.T) {
	ds, err := dataset.ReadCSV(strings.NewReader("Batch_ID,Yield,Energy_Consumption,Quality_Score,Pressure\nA,90,50,80,10\nB,95,40,85,12\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	h := New(Options{Sessions: session.New(ds, time.Minute)})
	logs := captureLogs(t)

	w := &brokenWriter{header: http.Header{}}
	h.export(w, httptest.NewRequest(http.MethodGet, "/api/v1/export?format=csv", nil))

	out := logs.String()
	if !strings.Contains(out, "api: export failed") || !strings.Contains(out, "format=csv") {
		t.Errorf("missing export failure log, got %q", out)
	}
	if got := h.metrics.exports.Load(); got != 0 {
		t.Errorf("exports counter: got %d, want 0 for a failed export", got)
	}
}

func TestJSONResp_UnencodableValueIs500(t *testing.T) {
	captureLogs(t)
	rr := httptest.NewRecorder()
	jsonResp(rr, http.StatusOK, map[string]float64{"score": math.NaN()})

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"error"`) {
		t.Errorf("body: got %q", rr.Body.String())
	}
}

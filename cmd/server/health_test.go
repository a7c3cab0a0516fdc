package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Ivan-Kwetey/ArtInsight/internal/config"
	"github.com/Ivan-Kwetey/ArtInsight/internal/metadata"
	"github.com/Ivan-Kwetey/ArtInsight/internal/middleware"
	"github.com/Ivan-Kwetey/ArtInsight/internal/prediction"
	"github.com/Ivan-Kwetey/ArtInsight/internal/preprocess"
)

type stubClassifier struct{}

func (stubClassifier) Predict(input []float32) ([]float32, error) { return make([]float32, 10), nil }
func (stubClassifier) OutputSize() int                            { return 10 }

func runtimeWith(t *testing.T, table *metadata.Table) *prediction.Runtime {
	t.Helper()
	pre, err := preprocess.New(224, "")
	if err != nil {
		t.Fatalf("preprocess.New failed: %v", err)
	}
	svc, err := prediction.NewService(stubClassifier{}, pre, config.DefaultLabels, table,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return &prediction.Runtime{Service: svc, Table: table}
}

func getHealth(t *testing.T, rt *prediction.Runtime) (int, middleware.HealthReport) {
	t.Helper()
	rec := httptest.NewRecorder()
	middleware.HealthHandler(healthCheckers(rt)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var report middleware.HealthReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	return rec.Code, report
}

func TestHealth_Ready(t *testing.T) {
	table := metadata.NewTable([]metadata.Record{
		{Filename: "wave.jpg", Title: "The Great Wave", Artist: "Hokusai"},
		{Filename: "night-watch.jpg", Title: "The Night Watch", Artist: "Rembrandt"},
	})

	code, report := getHealth(t, runtimeWith(t, table))
	if code != http.StatusOK || report.State != middleware.StateUp {
		t.Fatalf("Expected 200 up, got %d %q", code, report.State)
	}
	if got := report.Components["model"].Count; got != 10 {
		t.Errorf("Expected 10 labels reported, got %d", got)
	}
	if got := report.Components["metadata"].Count; got != 2 {
		t.Errorf("Expected 2 records reported, got %d", got)
	}
}

func TestHealth_EmptyMetadataStaysServing(t *testing.T) {
	code, report := getHealth(t, runtimeWith(t, metadata.NewTable(nil)))

	if code != http.StatusOK {
		t.Fatalf("Expected 200 with an empty table, got %d", code)
	}
	if report.State != middleware.StateDegraded {
		t.Errorf("Expected degraded, got %q", report.State)
	}
	if report.Components["model"].State != middleware.StateUp {
		t.Errorf("Unexpected model component %+v", report.Components["model"])
	}
}

func TestHealth_NoRuntime(t *testing.T) {
	code, report := getHealth(t, nil)

	if code != http.StatusServiceUnavailable || report.State != middleware.StateDown {
		t.Fatalf("Expected 503 down, got %d %q", code, report.State)
	}
	if report.Components["model"].Detail == "" {
		t.Error("Expected a detail for the missing model")
	}
}

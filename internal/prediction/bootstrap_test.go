package prediction_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ivan-Kwetey/ArtInsight/internal/config"
	"github.com/Ivan-Kwetey/ArtInsight/internal/prediction"
)

func metadataConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Metadata.CSVPath = filepath.Join(t.TempDir(), "classes.csv")
	if err := os.WriteFile(cfg.Metadata.CSVPath, []byte("image_path,description,artist\nwave.jpg,The Great Wave,Hokusai\n"), 0644); err != nil {
		t.Fatalf("Failed to write CSV: %v", err)
	}
	return cfg
}

func TestLoadMetadata_CSV(t *testing.T) {
	table, err := prediction.LoadMetadata(context.Background(), metadataConfig(t))
	if err != nil {
		t.Fatalf("LoadMetadata failed: %v", err)
	}
	if table.Len() != 1 {
		t.Errorf("Expected 1 record, got %d", table.Len())
	}
}

func TestLoadMetadata_PostgresSource(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		wantMsg string
	}{
		{"bad dsn", "postgres://art@localhost:notaport/art", "failed to connect to database"},
		{"unreachable", "postgres://art@127.0.0.1:1/art?connect_timeout=1", "failed to ping database"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := metadataConfig(t)
			cfg.Metadata.Source = "postgres"
			cfg.Metadata.Database = tt.dsn

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// The CSV is valid, so a table here would mean the postgres source was ignored.
			table, err := prediction.LoadMetadata(ctx, cfg)
			if err == nil {
				t.Fatalf("Expected postgres error, got table with %d records", table.Len())
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected %q in error, got %v", tt.wantMsg, err)
			}
		})
	}
}

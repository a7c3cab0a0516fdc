package prediction_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/Ivan-Kwetey/ArtInsight/internal/config"
	"github.com/Ivan-Kwetey/ArtInsight/internal/metadata"
	"github.com/Ivan-Kwetey/ArtInsight/internal/prediction"
)

var labels = config.DefaultLabels

func testTable() *metadata.Table {
	return metadata.NewTable([]metadata.Record{
		{Filename: "wikiart/ukiyo_e/great-wave.jpg", Title: "The Great Wave off Kanagawa", Artist: "Katsushika Hokusai"},
	})
}

func TestAssemble_WorkedExample(t *testing.T) {
	scores := []float32{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.9}

	p, err := prediction.Assemble(scores, "great-wave.jpg", labels, testTable())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if p.Style1Name != "Ukiyo_e" {
		t.Errorf("Expected Ukiyo_e, got %q", p.Style1Name)
	}
	if p.Style2Name != "Abstract Expressionism" {
		t.Errorf("Expected tie to resolve to index 0, got %q", p.Style2Name)
	}
	if p.Style1Percentage != 90.00 || p.Style2Percentage != 10.00 {
		t.Errorf("Expected 90/10, got %v/%v", p.Style1Percentage, p.Style2Percentage)
	}
	if p.PaintingTitle != "The Great Wave off Kanagawa" || p.ArtistName != "Katsushika Hokusai" {
		t.Errorf("Unexpected metadata %q / %q", p.PaintingTitle, p.ArtistName)
	}
}

func TestAssemble_MetadataMiss(t *testing.T) {
	scores := []float32{0.5, 0.2, 0, 0, 0, 0, 0, 0, 0, 0}

	p, err := prediction.Assemble(scores, "someone-elses.png", labels, testTable())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if p.PaintingTitle != "Unknown Title" || p.ArtistName != "Unknown Artist" {
		t.Errorf("Expected sentinels, got %q / %q", p.PaintingTitle, p.ArtistName)
	}
}

func TestAssemble_ZeroScores(t *testing.T) {
	scores := make([]float32, 10)

	p, err := prediction.Assemble(scores, "x.jpg", labels, testTable())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if p.Style1Percentage != 0 || p.Style2Percentage != 0 {
		t.Errorf("Expected 0/0, got %v/%v", p.Style1Percentage, p.Style2Percentage)
	}
	if p.Style1Name != labels[0] || p.Style2Name != labels[1] {
		t.Errorf("Expected first two labels on all-zero scores, got %q, %q", p.Style1Name, p.Style2Name)
	}
}

func TestAssemble_DistinctScoresSumTo100(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		perm := rng.Perm(10)
		scores := make([]float32, 10)
		for i, v := range perm {
			scores[i] = float32(v+1) * rng.Float32()
		}
		// Guarantee distinct values.
		for i := range scores {
			scores[i] += float32(i) * 1e-3
		}

		p, err := prediction.Assemble(scores, "x.jpg", labels, testTable())
		if err != nil {
			t.Fatalf("Assemble failed: %v", err)
		}

		best, second := -1, -1
		for i := range scores {
			if best < 0 || scores[i] > scores[best] {
				best = i
			}
		}
		for i := range scores {
			if i != best && (second < 0 || scores[i] > scores[second]) {
				second = i
			}
		}

		if p.Style1Name != labels[best] || p.Style2Name != labels[second] {
			t.Fatalf("Run %d: expected %q,%q got %q,%q for %v", run, labels[best], labels[second], p.Style1Name, p.Style2Name, scores)
		}
		if sum := p.Style1Percentage + p.Style2Percentage; math.Abs(sum-100) > 0.011 {
			t.Fatalf("Run %d: percentages sum to %v", run, sum)
		}
		if p.Style1Percentage < p.Style2Percentage {
			t.Fatalf("Run %d: style1 %v below style2 %v", run, p.Style1Percentage, p.Style2Percentage)
		}
	}
}

func TestAssemble_RoundsToTwoDecimals(t *testing.T) {
	scores := []float32{0, 2, 0, 1, 0, 0, 0, 0, 0, 0}

	p, err := prediction.Assemble(scores, "x.jpg", labels, testTable())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if p.Style1Percentage != 66.67 || p.Style2Percentage != 33.33 {
		t.Errorf("Expected 66.67/33.33, got %v/%v", p.Style1Percentage, p.Style2Percentage)
	}
}

func TestAssemble_LengthMismatch(t *testing.T) {
	_, err := prediction.Assemble([]float32{0.3, 0.7}, "x.jpg", labels, testTable())
	if !errors.Is(err, prediction.ErrConfigurationMismatch) {
		t.Errorf("Expected ErrConfigurationMismatch, got %v", err)
	}
}

func TestTopTwo_Ties(t *testing.T) {
	tests := []struct {
		scores     []float32
		top1, top2 int
	}{
		{[]float32{0.5, 0.5, 0.9}, 2, 0},
		{[]float32{0.3, 0.5, 0.5}, 1, 2},
		{[]float32{0.7, 0.7, 0.7}, 0, 1},
		{[]float32{0.1, 0.9}, 1, 0},
	}
	for _, tt := range tests {
		top1, top2 := prediction.TopTwo(tt.scores)
		if top1 != tt.top1 || top2 != tt.top2 {
			t.Errorf("TopTwo(%v) = %d,%d want %d,%d", tt.scores, top1, top2, tt.top1, tt.top2)
		}
	}
}

func TestCheckLabels(t *testing.T) {
	if err := prediction.CheckLabels(labels, 10); err != nil {
		t.Errorf("Expected matching labels to pass, got %v", err)
	}
	if err := prediction.CheckLabels(labels, 1000); !errors.Is(err, prediction.ErrConfigurationMismatch) {
		t.Errorf("Expected ErrConfigurationMismatch, got %v", err)
	}
	if err := prediction.CheckLabels([]string{"only"}, 1); !errors.Is(err, prediction.ErrConfigurationMismatch) {
		t.Errorf("Expected ErrConfigurationMismatch for single class, got %v", err)
	}
}

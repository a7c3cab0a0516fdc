package prediction

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrConfigurationMismatch means the label set and the score vector disagree in length.
	ErrConfigurationMismatch = errors.New("label set does not match classifier output")
	// ErrUnavailable is returned when no classifier is loaded.
	ErrUnavailable = errors.New("model not loaded")
)

// Lookup resolves an upload filename to painting metadata. A miss returns sentinel values.
type Lookup interface {
	Lookup(filename string) (title, artist string, ok bool)
}

// Prediction is the nested prediction object returned to clients.
type Prediction struct {
	Style1Percentage float64 `json:"style1_percentage"`
	Style2Percentage float64 `json:"style2_percentage"`
	Style1Name       string  `json:"style1_name"`
	Style2Name       string  `json:"style2_name"`
	PaintingTitle    string  `json:"painting_title"`
	ArtistName       string  `json:"artist_name"`
}

// Result is the response body of a successful prediction request.
type Result struct {
	ImageURL   string     `json:"image_url,omitempty"`
	Prediction Prediction `json:"prediction"`
}

// CheckLabels verifies that a classifier with outputSize scores can be mapped onto labels.
func CheckLabels(labels []string, outputSize int) error {
	if len(labels) != outputSize {
		return fmt.Errorf("%w: %d labels, classifier outputs %d scores", ErrConfigurationMismatch, len(labels), outputSize)
	}
	if outputSize < 2 {
		return fmt.Errorf("%w: need at least two classes, got %d", ErrConfigurationMismatch, outputSize)
	}
	return nil
}

// TopTwo returns the indices of the highest and second-highest scores. Ties go to the lower index.
func TopTwo(scores []float32) (top1, top2 int) {
	top1, top2 = -1, -1
	for i, s := range scores {
		switch {
		case top1 < 0 || s > scores[top1]:
			top2 = top1
			top1 = i
		case top2 < 0 || s > scores[top2]:
			top2 = i
		}
	}
	return top1, top2
}

// Assemble turns a score vector into the two leading styles and joins the painting metadata.
// The percentages split 100 between the top two classes only; they are not a softmax over
// all classes.
func Assemble(scores []float32, filename string, labels []string, table Lookup) (Prediction, error) {
	if err := CheckLabels(labels, len(scores)); err != nil {
		return Prediction{}, err
	}

	top1, top2 := TopTwo(scores)
	s1, s2 := float64(scores[top1]), float64(scores[top2])

	total := s1 + s2
	if total <= 0 {
		total = 1
	}

	p := Prediction{
		Style1Percentage: round2(s1 / total * 100),
		Style2Percentage: round2(s2 / total * 100),
		Style1Name:       labels[top1],
		Style2Name:       labels[top2],
	}
	p.PaintingTitle, p.ArtistName, _ = table.Lookup(filename)
	return p, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

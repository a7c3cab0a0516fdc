package prediction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Ivan-Kwetey/ArtInsight/internal/preprocess"
)

// Classifier produces one score per class for a preprocessed tensor.
type Classifier interface {
	Predict(input []float32) ([]float32, error)
	OutputSize() int
}

// Service wires the preprocessor, classifier and metadata table together. All fields are
// fixed at construction; the service is safe for concurrent use.
type Service struct {
	classifier   Classifier
	preprocessor *preprocess.Preprocessor
	labels       []string
	table        Lookup
	logger       *slog.Logger
}

// NewService validates the label set against the classifier before returning.
func NewService(c Classifier, p *preprocess.Preprocessor, labels []string, table Lookup, logger *slog.Logger) (*Service, error) {
	if err := CheckLabels(labels, c.OutputSize()); err != nil {
		return nil, err
	}
	return &Service{
		classifier:   c,
		preprocessor: p,
		labels:       append([]string(nil), labels...),
		table:        table,
		logger:       logger,
	}, nil
}

// Labels returns a copy of the class labels in score order.
func (s *Service) Labels() []string {
	return append([]string(nil), s.labels...)
}

// InputSize is the tensor length PredictTensor expects.
func (s *Service) InputSize() int {
	return s.preprocessor.TensorLen()
}

// PredictFile preprocesses the image at path and classifies it. filename is the
// metadata key, normally the sanitized upload name.
func (s *Service) PredictFile(ctx context.Context, path, filename string) (Prediction, error) {
	if !preprocess.AllowedFile(filename) {
		return Prediction{}, fmt.Errorf("%w: %s", preprocess.ErrUnsupportedExtension, filename)
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	tensor, err := s.preprocessor.File(path)
	if err != nil {
		return Prediction{}, err
	}
	return s.PredictTensor(tensor, filename)
}

// PredictTensor classifies an already preprocessed tensor.
func (s *Service) PredictTensor(tensor []float32, filename string) (Prediction, error) {
	if want := s.preprocessor.TensorLen(); len(tensor) != want {
		return Prediction{}, fmt.Errorf("expected %d tensor values, got %d", want, len(tensor))
	}

	scores, err := s.classifier.Predict(tensor)
	if err != nil {
		return Prediction{}, fmt.Errorf("classify %s: %w", filename, err)
	}
	s.logger.Debug("predictions", "file", filename, "scores", scores)

	return Assemble(scores, filename, s.labels, s.table)
}

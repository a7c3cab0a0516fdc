package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Ivan-Kwetey/ArtInsight/internal/prediction"
	"github.com/Ivan-Kwetey/ArtInsight/internal/preprocess"
)

// Predictor is the part of prediction.Service the handlers use.
type Predictor interface {
	PredictFile(ctx context.Context, path, filename string) (prediction.Prediction, error)
	PredictTensor(tensor []float32, filename string) (prediction.Prediction, error)
	InputSize() int
}

type Handler struct {
	predictor Predictor
	uploadDir string
	maxUpload int64
	logger    *slog.Logger
}

// NewHandler returns a handler backed by predictor. A nil predictor makes every
// prediction endpoint answer 503.
func NewHandler(predictor Predictor, uploadDir string, maxUpload int64, logger *slog.Logger) *Handler {
	return &Handler{
		predictor: predictor,
		uploadDir: uploadDir,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

type rawRequest struct {
	Image    []float32 `json:"image"`
	Filename string    `json:"filename"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeError maps pipeline errors to client responses. Details only go to the log.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, preprocess.ErrUnsupportedExtension):
		badRequest(w, "Invalid file type")
	case errors.Is(err, preprocess.ErrImageDecode):
		h.logger.Warn("image decode failed", "path", r.URL.Path, "err", err)
		badRequest(w, "Invalid image")
	case errors.Is(err, prediction.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Model not loaded"})
	default:
		h.logger.Error("prediction failed", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Prediction error, check logs"})
	}
}

// Predict handles POST /predict with a multipart "file" field.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if h.predictor == nil {
		h.writeError(w, r, prediction.ErrUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "File too large"})
			return
		}
		badRequest(w, "Failed to parse form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "No file part")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		badRequest(w, "No selected file")
		return
	}

	filename := SecureFilename(header.Filename)
	if !preprocess.AllowedFile(header.Filename) || !preprocess.AllowedFile(filename) {
		badRequest(w, "Invalid file type")
		return
	}

	h.logger.Info("received file", "filename", filename, "bytes", header.Size)

	path, err := h.save(file, filename)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.predictor.PredictFile(r.Context(), path, filename)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, prediction.Result{
		ImageURL:   "/uploads/" + filename,
		Prediction: p,
	})
}

// save writes the upload to a temporary name and renames it to filename, so a reader never
// sees a partial file. Concurrent uploads with the same name leave the last one in place.
func (h *Handler) save(src io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	tmpPath := filepath.Join(h.uploadDir, "."+uuid.NewString()+".part")
	out, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	defer os.Remove(tmpPath)

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}

	path := filepath.Join(h.uploadDir, filename)
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

// PredictRaw handles POST /predict/raw with an already preprocessed NHWC tensor.
func (h *Handler) PredictRaw(w http.ResponseWriter, r *http.Request) {
	if h.predictor == nil {
		h.writeError(w, r, prediction.ErrUnavailable)
		return
	}

	var req rawRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxUpload)).Decode(&req); err != nil {
		badRequest(w, "Invalid JSON")
		return
	}

	if expected := h.predictor.InputSize(); len(req.Image) != expected {
		badRequest(w, fmt.Sprintf("Expected %d values, got %d", expected, len(req.Image)))
		return
	}

	p, err := h.predictor.PredictTensor(req.Image, SecureFilename(req.Filename))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, prediction.Result{Prediction: p})
}

// Upload serves GET /uploads/{filename} from the upload directory.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || name != SecureFilename(name) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.uploadDir, name))
}

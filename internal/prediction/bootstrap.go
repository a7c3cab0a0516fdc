package prediction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Ivan-Kwetey/ArtInsight/internal/config"
	"github.com/Ivan-Kwetey/ArtInsight/internal/metadata"
	"github.com/Ivan-Kwetey/ArtInsight/internal/model"
	"github.com/Ivan-Kwetey/ArtInsight/internal/preprocess"
)

// LoadedClassifier is a Classifier that owns native resources.
type LoadedClassifier interface {
	Classifier
	Close()
}

// Loaders are the startup steps that touch the outside world. Zero fields use the real
// implementations.
type Loaders struct {
	Metadata   func(ctx context.Context, cfg *config.Config) (*metadata.Table, error)
	Provision  func(ctx context.Context, logger *slog.Logger, cfg *config.Config) error
	Classifier func(opts model.Options) (LoadedClassifier, error)
}

// Runtime is everything Bootstrap initialised.
type Runtime struct {
	Service    *Service
	Table      *metadata.Table
	Classifier LoadedClassifier
}

func (r *Runtime) Close() {
	if r != nil && r.Classifier != nil {
		r.Classifier.Close()
	}
}

// Bootstrap runs the startup sequence in order: metadata table, model provisioning,
// classifier load, label validation. It returns before any request can be served if a
// step fails. A metadata failure is logged and yields an empty table.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger, loaders Loaders) (*Runtime, error) {
	if loaders.Metadata == nil {
		loaders.Metadata = LoadMetadata
	}
	if loaders.Provision == nil {
		loaders.Provision = ProvisionModel
	}
	if loaders.Classifier == nil {
		loaders.Classifier = func(opts model.Options) (LoadedClassifier, error) {
			return model.NewServer(opts)
		}
	}

	pre, err := preprocess.New(cfg.Model.ImageSize, cfg.Model.Resample)
	if err != nil {
		return nil, fmt.Errorf("preprocessor: %w", err)
	}

	table, err := loaders.Metadata(ctx, cfg)
	if err != nil {
		logger.Error("failed to load metadata, lookups will return unknown values", "source", cfg.Metadata.Source, "err", err)
		table = metadata.NewTable(nil)
	} else {
		logger.Info("metadata loaded", "source", cfg.Metadata.Source, "records", table.Len())
	}

	if err := loaders.Provision(ctx, logger, cfg); err != nil {
		return nil, err
	}

	clf, err := loaders.Classifier(model.Options{
		ModelPath:     cfg.Model.Path,
		SharedLibrary: cfg.Model.SharedLibrary,
		InputName:     cfg.Model.InputName,
		OutputName:    cfg.Model.OutputName,
		InputShape:    pre.Shape(),
	})
	if err != nil {
		return nil, fmt.Errorf("load classifier %s: %w", cfg.Model.Path, err)
	}
	logger.Info("model loaded", "path", cfg.Model.Path, "outputs", clf.OutputSize())

	svc, err := NewService(clf, pre, cfg.Model.Labels, table, logger)
	if err != nil {
		clf.Close()
		return nil, err
	}

	return &Runtime{Service: svc, Table: table, Classifier: clf}, nil
}

// LoadMetadata reads the painting table from the configured source.
func LoadMetadata(ctx context.Context, cfg *config.Config) (*metadata.Table, error) {
	switch cfg.Metadata.Source {
	case "postgres":
		return metadata.LoadPostgres(ctx, cfg.Metadata.Database, cfg.Metadata.Table)
	default:
		return metadata.LoadCSV(cfg.Metadata.CSVPath)
	}
}

// ProvisionModel downloads the model artifact if it is not already at model.path.
func ProvisionModel(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	var src model.Source
	if cfg.Model.URL != "" {
		store := model.BlobStore{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
		}
		var err error
		src, err = model.NewSource(cfg.Model.URL, store, cfg.Model.DownloadRetries)
		if err != nil {
			return &model.ProvisioningError{URL: cfg.Model.URL, Path: cfg.Model.Path, Err: err}
		}
	}
	return model.EnsurePresent(ctx, logger, cfg.Model.Path, src)
}

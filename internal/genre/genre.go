// Package genre runs the classification pipeline for one uploaded clip:
// load, extract, reconcile, classify.
package genre

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/satindergrewal/genreid/internal/audio"
	"github.com/satindergrewal/genreid/internal/features"
	"github.com/satindergrewal/genreid/internal/model"
)

// InferenceError wraps any failure that is not the caller's fault:
// extraction or prediction errors and recovered panics.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return "inference failed: " + e.Err.Error() }

func (e *InferenceError) Unwrap() error { return e.Err }

// Result is the prediction for one clip.
type Result struct {
	Genre        string         `json:"genre"`
	Top3         []model.Score  `json:"top3"`
	Source       audio.Modality `json:"source"`
	FeaturesUsed int            `json:"features_used"`
}

// Loader produces an analysis-ready waveform from a media file.
type Loader interface {
	Load(ctx context.Context, path, ext string) (audio.Waveform, error)
}

// Service holds the immutable state shared by every request. It is safe
// for concurrent use.
type Service struct {
	loader Loader
	schema features.Schema
	clf    model.Classifier
	log    *logrus.Entry
}

// New creates a Service from a loaded model bundle. Disagreements between
// this build's extractor and the trained artifact are logged once here;
// Reconcile logs them again on every request.
func New(loader Loader, b *model.Bundle) *Service {
	log := logrus.WithField("component", "genre")
	if b.Schema.Len() != features.Size {
		log.WithFields(logrus.Fields{
			"extracted": features.Size,
			"expected":  b.Schema.Len(),
		}).Warn("trained schema length differs from extractor output; vectors will be padded/truncated")
	}
	if b.Artifact != nil && b.Artifact.SchemaVersion != features.SchemaVersion {
		log.WithFields(logrus.Fields{
			"artifact":  b.Artifact.SchemaVersion,
			"extractor": features.SchemaVersion,
		}).Warn("artifact was trained on a different feature schema version")
	}
	return &Service{loader: loader, schema: b.Schema, clf: b.Classifier, log: log}
}

// ExpectedFeatures is the feature count the classifier consumes.
func (s *Service) ExpectedFeatures() int { return s.schema.Len() }

// Classes returns the genres the classifier can predict.
func (s *Service) Classes() []string { return s.clf.Classes() }

// Classify predicts the genre of the file at path. ext selects audio or
// video handling. Unsupported formats, videos without audio and decode
// failures come back as the typed errors of package audio and a cancelled
// ctx as its own error; everything else is an *InferenceError.
func (s *Service) Classify(ctx context.Context, path, ext string) (*Result, error) {
	source, err := audio.ModalityOf(ext)
	if err != nil {
		return nil, err
	}

	w, err := s.loader.Load(ctx, path, ext)
	if err != nil {
		if isUserError(err) {
			return nil, err
		}
		return nil, &InferenceError{Err: err}
	}

	res, err := s.infer(w)
	if err != nil {
		return nil, err
	}
	res.Source = source

	s.log.WithFields(logrus.Fields{
		"genre":    res.Genre,
		"source":   source,
		"duration": w.Duration().String(),
	}).Info("classified")
	return res, nil
}

// infer runs extraction and prediction, converting panics into an
// *InferenceError.
func (s *Service) infer(w audio.Waveform) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &InferenceError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	raw, err := features.Extract(w)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	x := features.Reconcile(raw, s.schema.Len())

	genre, top, err := s.clf.PredictRank(x, model.TopK)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	return &Result{Genre: genre, Top3: top, FeaturesUsed: len(x)}, nil
}

func isUserError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var (
		unsupported *audio.UnsupportedFormatError
		noAudio     *audio.NoAudioTrackError
		decode      *audio.DecodeError
	)
	return errors.As(err, &unsupported) || errors.As(err, &noAudio) || errors.As(err, &decode)
}

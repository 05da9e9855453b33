package model

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/satindergrewal/genreid/internal/features"
	"github.com/satindergrewal/genreid/internal/storage"
)

// LoadError reports a missing, corrupt or inconsistent trained artifact.
// The service cannot start without one.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Bundle is everything loaded once at start-up.
type Bundle struct {
	Classifier Classifier
	Artifact   *Artifact
	Schema     features.Schema
}

// Load reads the classifier artifact and the feature-table schema. Both
// locations may be local paths or s3:// URIs. The artifact must accept
// exactly as many features as the schema lists.
func Load(ctx context.Context, modelPath, schemaPath string, opts storage.S3Options) (*Bundle, error) {
	log := logrus.WithField("component", "model")

	raw, err := storage.ReadAll(ctx, modelPath, opts)
	if err != nil {
		return nil, &LoadError{Path: modelPath, Err: err}
	}
	art, err := DecodeArtifact(bytes.NewReader(raw))
	if err != nil {
		return nil, &LoadError{Path: modelPath, Err: err}
	}
	clf, err := New(art)
	if err != nil {
		return nil, &LoadError{Path: modelPath, Err: err}
	}

	rawSchema, err := storage.ReadAll(ctx, schemaPath, opts)
	if err != nil {
		return nil, &LoadError{Path: schemaPath, Err: err}
	}
	schema, err := features.ReadSchema(bytes.NewReader(rawSchema))
	if err != nil {
		return nil, &LoadError{Path: schemaPath, Err: err}
	}
	if schema.Len() != clf.NumFeatures() {
		return nil, &LoadError{
			Path: modelPath,
			Err:  fmt.Errorf("artifact takes %d features but schema lists %d", clf.NumFeatures(), schema.Len()),
		}
	}

	_, probabilistic := clf.(*Probabilistic)
	log.WithFields(logrus.Fields{
		"classes":       len(art.Classes),
		"features":      schema.Len(),
		"kernel":        art.SVC.Kernel,
		"probabilistic": probabilistic,
		"svs":           len(art.SVC.SupportVectors),
	}).Info("model loaded")
	return &Bundle{Classifier: clf, Artifact: art, Schema: schema}, nil
}

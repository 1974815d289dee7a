/*
 *     Copyright 2023 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package model holds the artifact currently served by the predictor.
package model

import (
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"d7y.io/predictor/internal/dferrors"
	logger "d7y.io/predictor/internal/dflog"
	"d7y.io/predictor/pkg/artifact"
	"d7y.io/predictor/pkg/digest"
	"d7y.io/predictor/trainer/dataset"
)

// Info describes the loaded model.
type Info struct {
	// RunID is the training run that produced the model.
	RunID string `json:"run_id"`

	// Digest is the digest of the loaded artifact bytes.
	Digest string `json:"digest"`

	// Generation counts successful loads, starting at 1.
	Generation uint64 `json:"generation"`

	LoadedAt     time.Time        `json:"loaded_at"`
	CreatedAt    time.Time        `json:"created_at"`
	FeatureNames []string         `json:"feature_names"`
	TargetName   string           `json:"target_name"`
	Metrics      artifact.Metrics `json:"metrics"`
}

// active pairs a decoded model with its info, swapped as one pointer.
type active struct {
	model *artifact.Model
	info  Info
}

// Handle is a concurrency safe container of the served model. It starts empty
// and is filled by Load, predictions never wait for a load in progress.
type Handle struct {
	// mu guards current and is held only to copy or swap the pointer.
	mu      sync.RWMutex
	current *active

	// loadMu serializes loads.
	loadMu sync.Mutex

	generation   *atomic.Uint64
	featureNames []string
	now          func() time.Time
}

// Option is a functional option for Handle.
type Option func(*Handle)

// WithFeatureNames sets the feature order an artifact must carry to be loaded.
func WithFeatureNames(names []string) Option {
	return func(h *Handle) {
		h.featureNames = append([]string(nil), names...)
	}
}

// WithNow sets the clock used for load times.
func WithNow(now func() time.Time) Option {
	return func(h *Handle) {
		h.now = now
	}
}

// New returns an empty Handle.
func New(options ...Option) *Handle {
	h := &Handle{
		generation:   atomic.NewUint64(0),
		featureNames: dataset.Features(),
		now:          time.Now,
	}

	for _, opt := range options {
		opt(h)
	}

	return h
}

// Load decodes data and makes it the served model. On error the previous
// model, if any, stays in place.
func (h *Handle) Load(data []byte) error {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	m, err := artifact.Decode(data)
	if err != nil {
		return err
	}

	if !equalNames(m.FeatureNames, h.featureNames) {
		return dferrors.Newf(dferrors.CodeCorruptArtifact, "feature order mismatch: artifact has %v, expected %v", m.FeatureNames, h.featureNames)
	}

	next := &active{
		model: m,
		info: Info{
			RunID:        m.RunID,
			Digest:       digest.FromBytes(data),
			Generation:   h.generation.Load() + 1,
			LoadedAt:     h.now().UTC(),
			CreatedAt:    m.CreatedAt,
			FeatureNames: append([]string(nil), m.FeatureNames...),
			TargetName:   m.TargetName,
			Metrics:      m.Metrics,
		},
	}

	h.mu.Lock()
	h.current = next
	h.mu.Unlock()
	h.generation.Store(next.info.Generation)

	logger.Infof("model %s loaded, digest %s generation %d", next.info.RunID, next.info.Digest, next.info.Generation)
	return nil
}

// Ready reports whether a model is loaded.
func (h *Handle) Ready() bool {
	return h.load() != nil
}

// Info returns the description of the loaded model, false when empty.
func (h *Handle) Info() (*Info, bool) {
	a := h.load()
	if a == nil {
		return nil, false
	}

	info := a.info
	info.FeatureNames = append([]string(nil), a.info.FeatureNames...)
	return &info, true
}

// Generation returns the number of successful loads.
func (h *Handle) Generation() uint64 {
	return h.generation.Load()
}

// Predict returns the prediction for features given in the model's feature order.
func (h *Handle) Predict(features []float64) (float64, error) {
	a := h.load()
	if a == nil {
		return 0, dferrors.New(dferrors.CodeModelNotLoaded, "model is not loaded")
	}

	return predict(a.model, features)
}

// PredictNamed projects named features into the model's feature order and predicts.
func (h *Handle) PredictNamed(features map[string]float64) (float64, error) {
	a := h.load()
	if a == nil {
		return 0, dferrors.New(dferrors.CodeModelNotLoaded, "model is not loaded")
	}

	row := make([]float64, len(a.model.FeatureNames))
	var missing []string
	for i, name := range a.model.FeatureNames {
		v, ok := features[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		row[i] = v
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return 0, dferrors.Newf(dferrors.CodeFeatureMismatch, "missing features %s", strings.Join(missing, ","))
	}

	if len(features) != len(row) {
		return 0, dferrors.Newf(dferrors.CodeFeatureMismatch, "got %d features, model expects %d", len(features), len(row))
	}

	return predict(a.model, row)
}

func (h *Handle) load() *active {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func predict(m *artifact.Model, features []float64) (float64, error) {
	if len(features) != len(m.FeatureNames) {
		return 0, dferrors.Newf(dferrors.CodeFeatureMismatch, "got %d features, model expects %d", len(features), len(m.FeatureNames))
	}

	return m.Booster.Predict(features)
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

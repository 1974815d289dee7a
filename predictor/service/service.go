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

//go:generate mockgen -destination mocks/service_mock.go -source service.go -package mocks

package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"d7y.io/predictor/internal/dferrors"
	"d7y.io/predictor/predictor/metrics"
	"d7y.io/predictor/predictor/model"
	"d7y.io/predictor/predictor/reloader"
	"d7y.io/predictor/trainer/dataset"
)

// Status is the readiness of the service.
type Status string

const (
	// StatusReady means a model is loaded.
	StatusReady Status = "Ready"

	// StatusNotReady means no model is loaded yet.
	StatusNotReady Status = "NotReady"
)

// Service is the prediction service.
type Service interface {
	// Predict validates the named features and returns the model prediction.
	Predict(ctx context.Context, features map[string]float64) (float64, error)

	// Health reports whether a model is loaded.
	Health(ctx context.Context) Status

	// Model describes the loaded model.
	Model(ctx context.Context) (*model.Info, error)

	// LastReloadError returns the error of the last reload.
	LastReloadError(ctx context.Context) error

	// Reload fetches and loads the model from the store.
	Reload(ctx context.Context) (*model.Info, error)
}

type service struct {
	handle       *model.Handle
	reloader     reloader.Reloader
	featureNames []string
}

// New returns a Service over handle, reloads go through reloader.
func New(handle *model.Handle, reloader reloader.Reloader) Service {
	return &service{
		handle:       handle,
		reloader:     reloader,
		featureNames: dataset.Features(),
	}
}

// Predict requires exactly the model features, all finite. The prediction is
// returned as computed.
func (s *service) Predict(ctx context.Context, features map[string]float64) (float64, error) {
	start := time.Now()
	metrics.PredictCount.Inc()

	prediction, err := s.predict(features)
	if err != nil {
		code, _ := dferrors.CodeOf(err)
		metrics.PredictFailureCount.WithLabelValues(code.String()).Inc()
		return 0, err
	}

	metrics.PredictDuration.Observe(time.Since(start).Seconds())
	return prediction, nil
}

func (s *service) predict(features map[string]float64) (float64, error) {
	if err := validateFields(s.featureNames, features); err != nil {
		return 0, dferrors.Wrap(err, dferrors.CodeMalformedRequest, "invalid features")
	}

	row := make([]float64, len(s.featureNames))
	var errs *multierror.Error
	for i, name := range s.featureNames {
		v := features[name]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = multierror.Append(errs, dferrors.Newf(dferrors.CodeNonFiniteInput, "feature %s is not finite", name))
		}
		row[i] = v
	}

	if err := compact(errs).ErrorOrNil(); err != nil {
		return 0, dferrors.Wrap(err, dferrors.CodeNonFiniteInput, "invalid features")
	}

	return s.handle.Predict(row)
}

// validateFields names every missing and every unexpected feature.
func validateFields(featureNames []string, features map[string]float64) error {
	var errs *multierror.Error
	expected := make(map[string]struct{}, len(featureNames))
	for _, name := range featureNames {
		expected[name] = struct{}{}
		if _, ok := features[name]; !ok {
			errs = multierror.Append(errs, dferrors.Newf(dferrors.CodeMalformedRequest, "missing feature %s", name))
		}
	}

	var extra []string
	for name := range features {
		if _, ok := expected[name]; !ok {
			extra = append(extra, name)
		}
	}

	sort.Strings(extra)
	for _, name := range extra {
		errs = multierror.Append(errs, dferrors.Newf(dferrors.CodeMalformedRequest, "unexpected feature %s", name))
	}

	return compact(errs).ErrorOrNil()
}

// compact formats errs on a single line.
func compact(errs *multierror.Error) *multierror.Error {
	if errs == nil {
		return nil
	}

	errs.ErrorFormat = func(es []error) string {
		messages := make([]string, 0, len(es))
		for _, err := range es {
			if e, ok := err.(*dferrors.DfError); ok {
				messages = append(messages, e.Message)
				continue
			}
			messages = append(messages, err.Error())
		}

		return strings.Join(messages, "; ")
	}

	return errs
}

// Health reports whether a model is loaded.
func (s *service) Health(ctx context.Context) Status {
	if s.handle.Ready() {
		return StatusReady
	}

	return StatusNotReady
}

// Model describes the loaded model.
func (s *service) Model(ctx context.Context) (*model.Info, error) {
	info, ok := s.handle.Info()
	if !ok {
		return nil, dferrors.New(dferrors.CodeModelNotLoaded, "model is not loaded")
	}

	return info, nil
}

// LastReloadError returns the error of the last reload.
func (s *service) LastReloadError(ctx context.Context) error {
	return s.reloader.LastError()
}

// Reload fetches and loads the model, the served model is kept on failure.
func (s *service) Reload(ctx context.Context) (*model.Info, error) {
	return s.reloader.Reload(ctx)
}

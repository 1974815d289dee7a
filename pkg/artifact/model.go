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

// Package artifact encodes trained models and moves them through object storage.
package artifact

import (
	"time"

	"github.com/docker/go-units"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"d7y.io/predictor/internal/dferrors"
	"d7y.io/predictor/pkg/boosting"
)

const (
	// FormatVersion is the envelope version written by Encode.
	FormatVersion = 1

	// maxDecodedSize caps the decompressed envelope.
	maxDecodedSize = 512 * units.MiB
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
)

// Metrics are the evaluation results recorded at training time.
type Metrics struct {
	MAE       float64 `json:"mae"`
	MSE       float64 `json:"mse"`
	RMSE      float64 `json:"rmse"`
	R2        float64 `json:"r2"`
	TrainRMSE float64 `json:"train_rmse"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
}

// Model is the envelope persisted as a model artifact.
type Model struct {
	FormatVersion int               `json:"format_version"`
	RunID         string            `json:"run_id"`
	CreatedAt     time.Time         `json:"created_at"`
	FeatureNames  []string          `json:"feature_names"`
	TargetName    string            `json:"target_name"`
	Params        boosting.Params   `json:"params"`
	Metrics       Metrics           `json:"metrics"`
	Booster       *boosting.Booster `json:"booster"`
}

// Validate checks the envelope is self consistent.
func (m *Model) Validate() error {
	if m.FormatVersion != FormatVersion {
		return dferrors.Newf(dferrors.CodeCorruptArtifact, "unsupported format version %d", m.FormatVersion)
	}

	if m.Booster == nil {
		return dferrors.New(dferrors.CodeCorruptArtifact, "missing booster")
	}

	if m.TargetName == "" {
		return dferrors.New(dferrors.CodeCorruptArtifact, "missing target name")
	}

	seen := make(map[string]struct{}, len(m.FeatureNames))
	for _, name := range m.FeatureNames {
		if _, ok := seen[name]; ok || name == "" {
			return dferrors.Newf(dferrors.CodeCorruptArtifact, "invalid feature name %q", name)
		}
		seen[name] = struct{}{}
	}

	if len(m.FeatureNames) != m.Booster.NumFeatures {
		return dferrors.Newf(dferrors.CodeCorruptArtifact, "%d feature names for %d booster features", len(m.FeatureNames), m.Booster.NumFeatures)
	}

	return dferrors.Wrap(m.Booster.Validate(), dferrors.CodeCorruptArtifact, "invalid booster")
}

// Encode serializes m into compressed artifact bytes.
func Encode(m *Model) ([]byte, error) {
	if m == nil {
		return nil, dferrors.New(dferrors.CodeArtifactWriteError, "nil model")
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return nil, dferrors.Wrap(err, dferrors.CodeArtifactWriteError, "marshal model")
	}

	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// Decode parses artifact bytes produced by Encode and validates the result.
func Decode(data []byte) (*Model, error) {
	if len(data) == 0 {
		return nil, dferrors.New(dferrors.CodeCorruptArtifact, "empty artifact")
	}

	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, dferrors.Wrap(err, dferrors.CodeCorruptArtifact, "decompress artifact")
	}

	m := &Model{}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, dferrors.Wrap(err, dferrors.CodeCorruptArtifact, "unmarshal artifact")
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

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

package types

import (
	"d7y.io/predictor/predictor/model"
)

// PredictRequest maps every feature name to its value.
type PredictRequest map[string]any

type PredictResponse struct {
	Prediction float64 `json:"prediction"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ModelResponse struct {
	model.Info

	// LastReloadError is the error of the last failed reload, empty after a success.
	LastReloadError string `json:"last_reload_error,omitempty"`
}

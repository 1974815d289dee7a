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

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"d7y.io/predictor/internal/dferrors"
	"d7y.io/predictor/predictor/types"
)

// Predict returns the price predicted for the features in the body.
func (h *Handlers) Predict(ctx *gin.Context) {
	var json types.PredictRequest
	if err := ctx.ShouldBindJSON(&json); err != nil {
		ctx.Error(err).SetType(gin.ErrorTypeBind) // nolint: errcheck
		return
	}

	features, err := toFeatures(json)
	if err != nil {
		ctx.Error(err) // nolint: errcheck
		return
	}

	prediction, err := h.service.Predict(ctx.Request.Context(), features)
	if err != nil {
		ctx.Error(err) // nolint: errcheck
		return
	}

	ctx.JSON(http.StatusOK, types.PredictResponse{Prediction: prediction})
}

// toFeatures requires every value to be a JSON number.
func toFeatures(req types.PredictRequest) (map[string]float64, error) {
	features := make(map[string]float64, len(req))
	for name, value := range req {
		v, ok := value.(float64)
		if !ok {
			return nil, dferrors.Newf(dferrors.CodeMalformedRequest, "feature %s is not a number", name)
		}
		features[name] = v
	}

	return features, nil
}

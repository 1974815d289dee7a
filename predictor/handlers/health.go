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

	"d7y.io/predictor/predictor/service"
	"d7y.io/predictor/predictor/types"
)

// GetHealth reports 200 once a model is loaded and 503 before.
func (h *Handlers) GetHealth(ctx *gin.Context) {
	status := h.service.Health(ctx.Request.Context())
	if status != service.StatusReady {
		ctx.JSON(http.StatusServiceUnavailable, types.HealthResponse{Status: string(status)})
		return
	}

	ctx.JSON(http.StatusOK, types.HealthResponse{Status: string(status)})
}

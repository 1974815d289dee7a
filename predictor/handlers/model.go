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

	"d7y.io/predictor/predictor/types"
)

// GetModel describes the served model.
func (h *Handlers) GetModel(ctx *gin.Context) {
	info, err := h.service.Model(ctx.Request.Context())
	if err != nil {
		ctx.Error(err) // nolint: errcheck
		return
	}

	resp := types.ModelResponse{Info: *info}
	if err := h.service.LastReloadError(ctx.Request.Context()); err != nil {
		resp.LastReloadError = err.Error()
	}

	ctx.JSON(http.StatusOK, resp)
}

// ReloadModel fetches the model from the store and serves it.
func (h *Handlers) ReloadModel(ctx *gin.Context) {
	info, err := h.service.Reload(ctx.Request.Context())
	if err != nil {
		ctx.Error(err) // nolint: errcheck
		return
	}

	ctx.JSON(http.StatusOK, types.ModelResponse{Info: *info})
}

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

package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"d7y.io/predictor/internal/dferrors"
	logger "d7y.io/predictor/internal/dflog"
)

type ErrorResponse struct {
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Error renders the last error of the request. Only request errors carry
// their detail, store and artifact errors report the classification and codes
// outside those categories are reported as internal faults.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		err := c.Errors.Last()
		if err == nil {
			return
		}

		// Gin bind error handler
		if err.IsType(gin.ErrorTypeBind) {
			abort(c, http.StatusBadRequest, dferrors.CodeMalformedRequest.String(), err.Err, true)
			return
		}

		code, ok := dferrors.CodeOf(errors.Cause(err.Err))
		if !ok {
			code, ok = dferrors.CodeOf(err.Err)
		}

		if !ok {
			logger.GinLogger.Errorf("%s %s internal fault: %s", c.Request.Method, c.Request.URL.Path, err.Error())
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
				Message: http.StatusText(http.StatusInternalServerError),
				Reason:  string(dferrors.CategoryInternal),
			})
			return
		}

		switch code.Category() {
		case dferrors.CategoryRequest:
			if code == dferrors.CodeModelNotLoaded {
				abort(c, http.StatusServiceUnavailable, code.String(), err.Err, true)
				return
			}

			abort(c, http.StatusBadRequest, code.String(), err.Err, true)
		case dferrors.CategoryStore:
			if code == dferrors.CodeArtifactNotFound {
				abort(c, http.StatusNotFound, code.String(), err.Err, false)
				return
			}

			abort(c, http.StatusBadGateway, code.String(), err.Err, false)
		case dferrors.CategoryArtifact:
			abort(c, http.StatusUnprocessableEntity, code.String(), err.Err, false)
		default:
			logger.GinLogger.Errorf("%s %s internal fault: %s", c.Request.Method, c.Request.URL.Path, err.Error())
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
				Message: http.StatusText(http.StatusInternalServerError),
				Reason:  string(dferrors.CategoryInternal),
			})
		}
	}
}

// abort writes the error response, detail is set for errors about the
// caller's own input.
func abort(c *gin.Context, status int, reason string, err error, detail bool) {
	logger.GinLogger.Warnf("%s %s %d %s: %s", c.Request.Method, c.Request.URL.Path, status, reason, err.Error())
	resp := ErrorResponse{
		Message: http.StatusText(status),
		Reason:  reason,
	}
	if detail {
		resp.Error = err.Error()
	}

	c.AbortWithStatusJSON(status, resp)
}

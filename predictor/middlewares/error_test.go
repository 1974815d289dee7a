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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"d7y.io/predictor/internal/dferrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func mockErrorRouter(err error, errType gin.ErrorType) *gin.Engine {
	r := gin.New()
	r.Use(Error())
	r.GET("/", func(c *gin.Context) {
		c.Error(err).SetType(errType) // nolint: errcheck
	})
	return r
}

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType gin.ErrorType
		expect  func(t *testing.T, code int, resp ErrorResponse)
	}{
		{
			name:    "bind error",
			err:     errors.New("unexpected EOF"),
			errType: gin.ErrorTypeBind,
			expect: func(t *testing.T, code int, resp ErrorResponse) {
				assert := assert.New(t)
				assert.Equal(http.StatusBadRequest, code)
				assert.Equal("MalformedRequest", resp.Reason)
				assert.Equal("unexpected EOF", resp.Error)
			},
		},
		{
			name:    "malformed request",
			err:     dferrors.New(dferrors.CodeMalformedRequest, "missing feature lstat"),
			errType: gin.ErrorTypePrivate,
			expect: func(t *testing.T, code int, resp ErrorResponse) {
				assert := assert.New(t)
				assert.Equal(http.StatusBadRequest, code)
				assert.Equal("Bad Request", resp.Message)
				assert.Equal("MalformedRequest", resp.Reason)
				assert.Contains(resp.Error, "lstat")
			},
		},
		{
			name:    "non-finite input",
			err:     dferrors.New(dferrors.CodeNonFiniteInput, "feature nox is not finite"),
			errType: gin.ErrorTypePrivate,
			expect: func(t *testing.T, code int, resp ErrorResponse) {
				assert := assert.New(t)
				assert.Equal(http.StatusBadRequest, code)
				assert.Equal("NonFiniteInput", resp.Reason)
			},
		},
		{
			name:    "model not loaded",
			err:     dferrors.New(dferrors.CodeModelNotLoaded, "model is not loaded"),
			errType: gin.ErrorTypePrivate,
			expect: func(t *testing.T, code int, resp ErrorResponse) {
				assert := assert.New(t)
				assert.Equal(http.StatusServiceUnavailable, code)
				assert.Equal("ModelNotLoaded", resp.Reason)
			},
		},
		{
			name:    "artifact not found wrapped by pkg errors",
			err:     pkgerrors.Wrap(dferrors.New(dferrors.CodeArtifactNotFound, "foo"), "reload"),
			errType: gin.ErrorTypePrivate,
			expect: func(t *testing.T, code int, resp ErrorResponse) {
				assert := assert.New(t)
				assert.Equal(http.StatusNotFound, code)
				assert.Equal("ArtifactNotFound", resp.Reason)
				assert.Empty(resp.Error)
			},
		},
		{
			name:    "store unavailable hides the store error",
			err:     dferrors.Wrap(errors.New(`Get "http://10.1.2.3:9000/models/housing": dial tcp 10.1.2.3:9000: connect: connection refused`), dferrors.CodeStoreUnavailable, "get object models/housing"),
			errType: gin.ErrorTypePrivate,
			expect: func(t *testing.T, code int, resp ErrorResponse) {
				assert := assert.New(t)
				assert.Equal(http.StatusBadGateway, code)
				assert.Equal("Bad Gateway", resp.Message)
				assert.Equal("StoreUnavailable", resp.Reason)
				assert.Empty(resp.Error)
			},
		},
		{
			name:    "corrupt artifact",
			err:     dferrors.New(dferrors.CodeCorruptArtifact, "feature order mismatch"),
			errType: gin.ErrorTypePrivate,
			expect: func(t *testing.T, code int, resp ErrorResponse) {
				assert := assert.New(t)
				assert.Equal(http.StatusUnprocessableEntity, code)
				assert.Equal("CorruptArtifact", resp.Reason)
				assert.Empty(resp.Error)
			},
		},
		{
			name:    "training error is internal",
			err:     dferrors.New(dferrors.CodeNumericDivergence, "non-finite prediction"),
			errType: gin.ErrorTypePrivate,
			expect: func(t *testing.T, code int, resp ErrorResponse) {
				assert := assert.New(t)
				assert.Equal(http.StatusInternalServerError, code)
				assert.Equal("InternalFault", resp.Reason)
				assert.Empty(resp.Error)
			},
		},
		{
			name:    "unknown error leaks nothing",
			err:     errors.New("secret internals"),
			errType: gin.ErrorTypePrivate,
			expect: func(t *testing.T, code int, resp ErrorResponse) {
				assert := assert.New(t)
				assert.Equal(http.StatusInternalServerError, code)
				assert.Equal("InternalFault", resp.Reason)
				assert.Empty(resp.Error)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mockErrorRouter(tc.err, tc.errType).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			tc.expect(t, w.Code, resp)
		})
	}
}

func TestError_StoreBodyHasNoErrorField(t *testing.T) {
	w := httptest.NewRecorder()
	err := dferrors.Wrap(errors.New("dial tcp 10.1.2.3:9000: connect: connection refused"), dferrors.CodeStoreUnavailable, "get object")
	mockErrorRouter(err, gin.ErrorTypePrivate).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert := assert.New(t)
	assert.NotContains(body, "error")
	assert.NotContains(w.Body.String(), "10.1.2.3")
}

func TestError_NoError(t *testing.T) {
	r := gin.New()
	r.Use(Error())
	r.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	assert := assert.New(t)
	r := gin.New()
	r.Use(Server())
	r.Use(RateLimit(rate.NewLimiter(rate.Limit(0.5), 1)))
	r.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(http.StatusOK, w.Code)
	assert.NotEmpty(w.Header().Get(ServerVersion))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(http.StatusTooManyRequests, w.Code)
	assert.Equal("2", w.Header().Get("Retry-After"))
}

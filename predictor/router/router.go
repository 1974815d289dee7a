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

package router

import (
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/mcuadros/go-gin-prometheus"
	"golang.org/x/time/rate"

	"d7y.io/predictor/predictor/config"
	"d7y.io/predictor/predictor/handlers"
	"d7y.io/predictor/predictor/middlewares"
	"d7y.io/predictor/predictor/service"
)

const (
	PrometheusSubsystemName = "housing_predictor_http"
)

func Init(cfg *config.Config, service service.Service) (*gin.Engine, error) {
	// Set mode.
	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	h := handlers.New(service)

	// Prometheus metrics.
	if cfg.Metrics.Enable {
		p := ginprometheus.NewPrometheus(PrometheusSubsystemName)
		// URL removes query string.
		p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
			return c.Request.URL.Path
		}
		p.Use(r)
	}

	// Middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.Logger())
	r.Use(middlewares.Server())
	r.Use(middlewares.Error())

	// Health Check
	r.GET("/healthy", h.GetHealth)

	// Router
	apiv1 := r.Group("/api/v1")

	// Predict
	predict := []gin.HandlerFunc{h.Predict}
	if cfg.RateLimit.Limit > 0 {
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.Limit), cfg.RateLimit.Burst)
		predict = append([]gin.HandlerFunc{middlewares.RateLimit(limiter)}, predict...)
	}
	apiv1.POST("/predict", predict...)

	// Model
	m := apiv1.Group("/model")
	m.GET("", h.GetModel)
	m.POST("/reload", h.ReloadModel)

	return r, nil
}

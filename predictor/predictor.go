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

package predictor

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	logger "d7y.io/predictor/internal/dflog"
	"d7y.io/predictor/pkg/artifact"
	"d7y.io/predictor/pkg/objectstorage"
	"d7y.io/predictor/predictor/config"
	"d7y.io/predictor/predictor/metrics"
	"d7y.io/predictor/predictor/model"
	"d7y.io/predictor/predictor/reloader"
	"d7y.io/predictor/predictor/router"
	"d7y.io/predictor/predictor/service"
)

const (
	// gracefulStopTimeout specifies a time limit for
	// shutting down the servers gracefully.
	gracefulStopTimeout = 10 * time.Second
)

// Server is the prediction server.
type Server struct {
	// Server configuration.
	config *config.Config

	// Artifact store the model is fetched from.
	store reloader.Store

	// Served model.
	handle *model.Handle

	// Model reloader.
	reloader reloader.Reloader

	// REST server.
	restServer *http.Server

	// Metrics server.
	metricsServer *http.Server
}

// Option is a functional option for the server.
type Option func(s *Server)

// WithStore sets the artifact store.
func WithStore(store reloader.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// New returns a server serving the model loaded from the store. Failing to
// load the first model is an error.
func New(ctx context.Context, cfg *config.Config, options ...Option) (*Server, error) {
	s := &Server{
		config: cfg,
		handle: model.New(),
	}

	for _, opt := range options {
		opt(s)
	}

	// Initialize object storage.
	if s.store == nil {
		client, err := objectstorage.New(cfg.ObjectStorage.Name, cfg.ObjectStorage.Region, cfg.ObjectStorage.Endpoint,
			cfg.ObjectStorage.AccessKey, cfg.ObjectStorage.SecretKey)
		if err != nil {
			return nil, err
		}

		s.store = artifact.NewStore(client, artifact.WithMaxSize(cfg.ObjectStorage.MaxArtifactSize.ToNumber()))
	}

	// Initialize model reloader.
	s.reloader = reloader.New(s.store, s.handle, cfg.Model.Bucket, cfg.Model.Key,
		reloader.WithTimeout(cfg.Model.FetchTimeout), reloader.WithInterval(cfg.Model.ReloadInterval))

	// Load the first model.
	info, err := s.reloader.Reload(ctx)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "load model %s/%s", cfg.Model.Bucket, cfg.Model.Key)
	}
	logger.Infof("serving model of run %s, test rmse %.4f r2 %.4f", info.RunID, info.Metrics.RMSE, info.Metrics.R2)

	// Initialize REST server.
	r, err := router.Init(cfg, service.New(s.handle, s.reloader))
	if err != nil {
		return nil, err
	}

	s.restServer = &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.ListenIP, strconv.Itoa(cfg.Server.Port)),
		Handler: r,
	}

	// Initialize metrics.
	if cfg.Metrics.Enable {
		s.metricsServer = metrics.New(&cfg.Metrics)
	}

	return s, nil
}

// Serve blocks until the REST server is stopped.
func (s *Server) Serve() error {
	// Started metrics server.
	if s.metricsServer != nil {
		go func() {
			logger.Infof("started metrics server at %s", s.metricsServer.Addr)
			if err := s.metricsServer.ListenAndServe(); err != nil {
				if err == http.ErrServerClosed {
					return
				}
				logger.Fatalf("metrics server closed unexpect: %s", err.Error())
			}
		}()
	}

	// Started model reloader.
	go func() {
		logger.Infof("started model reloader every %s", s.config.Model.ReloadInterval)
		s.reloader.Serve()
	}()

	// Started REST server.
	logger.Infof("started rest server at %s", s.restServer.Addr)
	if err := s.restServer.ListenAndServe(); err != nil {
		if err == http.ErrServerClosed {
			return nil
		}

		logger.Errorf("stoped rest server: %s", err.Error())
		return err
	}

	return nil
}

// Stop shuts the servers down.
func (s *Server) Stop() {
	// Stop model reloader.
	s.reloader.Stop()
	logger.Info("model reloader closed under request")

	ctx, cancel := context.WithTimeout(context.Background(), gracefulStopTimeout)
	defer cancel()

	// Stop REST server.
	if err := s.restServer.Shutdown(ctx); err != nil {
		logger.Errorf("rest server failed to stop: %s", err.Error())
	}
	logger.Info("rest server closed under request")

	// Stop metrics server.
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			logger.Errorf("metrics server failed to stop: %s", err.Error())
		}
		logger.Info("metrics server closed under request")
	}
}

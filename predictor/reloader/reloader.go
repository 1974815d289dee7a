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

//go:generate mockgen -destination mocks/reloader_mock.go -source reloader.go -package mocks

// Package reloader keeps the served model in step with the object store.
package reloader

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"

	"d7y.io/predictor/internal/dferrors"
	logger "d7y.io/predictor/internal/dflog"
	"d7y.io/predictor/predictor/metrics"
	"d7y.io/predictor/predictor/model"
)

// reloadKey is the singleflight key shared by all reloads.
const reloadKey = "reload"

// Store is the part of the artifact store used by the reloader.
type Store interface {
	// Fetch returns the artifact bytes of bucket/key.
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)

	// Digest returns the digest recorded for bucket/key.
	Digest(ctx context.Context, bucket, key string) (string, error)
}

// Reloader fetches the model from the store into the handle.
type Reloader interface {
	// Reload fetches the model and loads it, concurrent calls share one fetch.
	Reload(ctx context.Context) (*model.Info, error)

	// LastError returns the error of the last reload, nil after a success.
	LastError() error

	// Serve polls the store until Stop is called.
	Serve()

	// Stop ends Serve.
	Stop()
}

type reloader struct {
	store  Store
	handle *model.Handle
	bucket string
	key    string

	// timeout bounds each store call.
	timeout time.Duration

	// interval between polls, zero disables polling.
	interval time.Duration

	group     singleflight.Group
	lastError *atomic.Error

	done     chan struct{}
	stopOnce sync.Once
}

// Option is a functional option for reloader.
type Option func(*reloader)

// WithTimeout sets the timeout of every store call.
func WithTimeout(timeout time.Duration) Option {
	return func(r *reloader) {
		r.timeout = timeout
	}
}

// WithInterval sets the poll interval.
func WithInterval(interval time.Duration) Option {
	return func(r *reloader) {
		r.interval = interval
	}
}

// New returns a Reloader of bucket/key into handle.
func New(store Store, handle *model.Handle, bucket, key string, options ...Option) Reloader {
	r := &reloader{
		store:     store,
		handle:    handle,
		bucket:    bucket,
		key:       key,
		lastError: atomic.NewError(nil),
		done:      make(chan struct{}),
	}

	for _, opt := range options {
		opt(r)
	}

	return r
}

// Reload fetches the model and loads it. A failed reload keeps the served model.
// The shared fetch is bounded by the reloader timeout only, a caller whose ctx
// is done stops waiting without cancelling it for the others.
func (r *reloader) Reload(ctx context.Context) (*model.Info, error) {
	ch := r.group.DoChan(reloadKey, func() (any, error) {
		return r.reload(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Shared {
			logger.WithObject(r.bucket, r.key).Debugf("reload shared with a concurrent caller")
		}

		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.(*model.Info), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *reloader) reload(ctx context.Context) (*model.Info, error) {
	log := logger.WithObject(r.bucket, r.key)
	data, err := r.fetch(ctx)
	if err != nil {
		r.fail(err)
		log.Errorf("fetch model failed: %s", err.Error())
		return nil, err
	}

	if err := r.handle.Load(data); err != nil {
		r.fail(err)
		log.Errorf("load model failed: %s", err.Error())
		return nil, err
	}

	r.lastError.Store(nil)
	info, _ := r.handle.Info()
	metrics.ModelLoadCount.Inc()
	metrics.ModelGeneration.Set(float64(info.Generation))
	metrics.ModelSize.Set(float64(len(data)))
	return info, nil
}

func (r *reloader) fetch(ctx context.Context) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	return r.store.Fetch(ctx, r.bucket, r.key)
}

func (r *reloader) fail(err error) {
	code, _ := dferrors.CodeOf(err)
	metrics.ModelLoadFailureCount.WithLabelValues(code.String()).Inc()
	r.lastError.Store(err)
}

// LastError returns the error of the last reload.
func (r *reloader) LastError() error {
	return r.lastError.Load()
}

// Serve polls the store every interval and reloads when the recorded digest
// differs from the served one. An empty remote digest always reloads.
func (r *reloader) Serve() {
	if r.interval <= 0 {
		logger.Info("model reload is disabled")
		<-r.done
		return
	}

	tick := time.NewTicker(r.interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			r.check()
		case <-r.done:
			logger.Info("model reloader stopped")
			return
		}
	}
}

// check reloads the model if the store holds a different one.
func (r *reloader) check() {
	log := logger.WithObject(r.bucket, r.key)

	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	remote, err := r.store.Digest(ctx, r.bucket, r.key)
	if err != nil {
		r.fail(err)
		log.Warnf("check model digest failed: %s", err.Error())
		return
	}

	if info, ok := r.handle.Info(); ok && remote != "" && remote == info.Digest {
		log.Debugf("model %s is up to date", remote)
		return
	}

	info, err := r.Reload(context.Background())
	if err != nil {
		return
	}

	log.Infof("model reloaded to run %s digest %s", info.RunID, info.Digest)
}

// Stop ends Serve.
func (r *reloader) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
}

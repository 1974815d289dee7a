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

package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/docker/go-units"

	"d7y.io/predictor/internal/dferrors"
	logger "d7y.io/predictor/internal/dflog"
	"d7y.io/predictor/pkg/digest"
	"d7y.io/predictor/pkg/objectstorage"
)

const (
	// DefaultMaxSize is default upper bound of an artifact.
	DefaultMaxSize = 64 * units.MiB
)

// Store publishes and fetches artifact bytes. It never retries and never
// imposes a timeout, the caller's context bounds every call.
type Store struct {
	client       objectstorage.ObjectStorage
	maxSize      int64
	createBucket bool
}

// Option is a functional option for Store.
type Option func(*Store)

// WithMaxSize sets the largest artifact accepted in either direction.
func WithMaxSize(size int64) Option {
	return func(s *Store) {
		if size > 0 {
			s.maxSize = size
		}
	}
}

// WithCreateBucket creates a missing bucket on publish.
func WithCreateBucket(create bool) Option {
	return func(s *Store) {
		s.createBucket = create
	}
}

// NewStore returns a store backed by client.
func NewStore(client objectstorage.ObjectStorage, options ...Option) *Store {
	s := &Store{
		client:  client,
		maxSize: DefaultMaxSize,
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// Publish stores data under bucket/key, replacing any previous object.
func (s *Store) Publish(ctx context.Context, data []byte, bucket, key string) error {
	log := logger.StoreLogger.With("bucket", bucket, "key", key)
	if int64(len(data)) > s.maxSize {
		return dferrors.Newf(dferrors.CodePayloadTooLarge, "artifact of %s exceeds limit %s",
			units.BytesSize(float64(len(data))), units.BytesSize(float64(s.maxSize)))
	}

	if s.createBucket {
		exist, err := s.client.IsBucketExist(ctx, bucket)
		if err != nil {
			return storeError(err, "check bucket %s", bucket)
		}

		if !exist {
			log.Infof("bucket %s does not exist, create it", bucket)
			if err := s.client.CreateBucket(ctx, bucket); err != nil {
				return storeError(err, "create bucket %s", bucket)
			}
		}
	}

	d := digest.FromBytes(data)
	if err := s.client.PutObject(ctx, bucket, key, d, bytes.NewReader(data)); err != nil {
		return storeError(err, "put object %s/%s", bucket, key)
	}

	log.Infof("published artifact %s of %s", d, units.HumanSize(float64(len(data))))
	return nil
}

// Fetch returns the bytes stored under bucket/key after checking them
// against the digest recorded at publish time.
func (s *Store) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	log := logger.StoreLogger.With("bucket", bucket, "key", key)
	meta, err := s.head(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	if meta.ContentLength > s.maxSize {
		return nil, dferrors.Newf(dferrors.CodePayloadTooLarge, "artifact of %s exceeds limit %s",
			units.BytesSize(float64(meta.ContentLength)), units.BytesSize(float64(s.maxSize)))
	}

	body, err := s.client.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, storeError(err, "get object %s/%s", bucket, key)
	}
	defer body.Close()

	var r io.Reader = body
	if meta.Digest != "" {
		algorithm, err := digest.AlgorithmOf(meta.Digest)
		if err != nil {
			return nil, dferrors.Wrapf(err, dferrors.CodeStoreUnavailable, "object %s/%s", bucket, key)
		}

		dr, err := digest.NewReader(algorithm, body, digest.WithEncoded(meta.Digest), digest.WithLogger(logger.WithObject(bucket, key)))
		if err != nil {
			return nil, dferrors.Wrapf(err, dferrors.CodeStoreUnavailable, "object %s/%s", bucket, key)
		}
		r = dr
	} else {
		log.Warn("object has no recorded digest, skip integrity check")
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		if errors.Is(err, digest.ErrDigestMismatch) {
			return nil, dferrors.Wrapf(err, dferrors.CodeStoreUnavailable, "integrity check of %s/%s", bucket, key)
		}

		return nil, dferrors.Wrapf(err, dferrors.CodeStoreUnavailable, "read object %s/%s", bucket, key)
	}

	if int64(len(data)) > s.maxSize {
		return nil, dferrors.Newf(dferrors.CodePayloadTooLarge, "artifact exceeds limit %s", units.BytesSize(float64(s.maxSize)))
	}

	log.Infof("fetched artifact of %s", units.HumanSize(float64(len(data))))
	return data, nil
}

// Digest returns the digest recorded for bucket/key without downloading it.
func (s *Store) Digest(ctx context.Context, bucket, key string) (string, error) {
	meta, err := s.head(ctx, bucket, key)
	if err != nil {
		return "", err
	}

	return meta.Digest, nil
}

func (s *Store) head(ctx context.Context, bucket, key string) (*objectstorage.ObjectMetadata, error) {
	meta, ok, err := s.client.GetObjectMetadata(ctx, bucket, key)
	if err != nil {
		return nil, storeError(err, "head object %s/%s", bucket, key)
	}

	if !ok {
		return nil, dferrors.Newf(dferrors.CodeArtifactNotFound, "object %s/%s not found", bucket, key)
	}

	return meta, nil
}

// storeError keeps codes assigned by the backend and classifies anything else as unavailable.
func storeError(err error, format string, a ...any) error {
	if _, ok := dferrors.CodeOf(err); ok {
		return err
	}

	return dferrors.Wrapf(err, dferrors.CodeStoreUnavailable, format, a...)
}

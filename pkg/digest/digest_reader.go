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

package digest

import (
	"errors"
	"fmt"
	"io"

	godigest "github.com/opencontainers/go-digest"

	logger "d7y.io/predictor/internal/dflog"
)

// ErrDigestMismatch is returned at EOF when the stream does not match the expected digest.
var ErrDigestMismatch = errors.New("digest encoded not match")

// Reader is the interface used for reading resource.
type Reader interface {
	io.Reader
	Encoded() string
}

// reader hashes the stream while reading it.
type reader struct {
	r        io.Reader
	expected godigest.Digest
	digester godigest.Digester
	logger   *logger.SugaredLoggerOnWith
}

// Option is a functional option for digest reader.
type Option func(reader *reader)

// WithLogger sets the logger for digest reader.
func WithLogger(logger *logger.SugaredLoggerOnWith) Option {
	return func(reader *reader) {
		reader.logger = logger
	}
}

// WithEncoded sets the digest to be verified, in "algorithm:hex" form.
func WithEncoded(encoded string) Option {
	return func(reader *reader) {
		reader.expected = godigest.Digest(encoded)
	}
}

// NewReader creates digest reader.
func NewReader(algorithm string, r io.Reader, options ...Option) (Reader, error) {
	algo := godigest.Algorithm(algorithm)
	if !algo.Available() {
		return nil, fmt.Errorf("invalid algorithm: %s", algorithm)
	}

	reader := &reader{
		r:        r,
		digester: algo.Digester(),
		logger:   &logger.SugaredLoggerOnWith{},
	}

	for _, opt := range options {
		opt(reader)
	}

	return reader, nil
}

// Read uses to read content and validate encoded.
func (r *reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF {
		return n, err
	}

	if n > 0 {
		r.digester.Hash().Write(p[:n])
	}

	if err == io.EOF && r.expected != "" {
		encoded := r.Encoded()
		if encoded != r.expected.String() {
			r.logger.Warnf("digest encoded not match, desired: %s, actual: %s", r.expected, encoded)
			return n, ErrDigestMismatch
		}

		r.logger.Debugf("digest encoded match: %s", encoded)
	}

	return n, err
}

// Encoded returns the digest of the bytes read so far.
func (r *reader) Encoded() string {
	return r.digester.Digest().String()
}

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

package objectstorage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"d7y.io/predictor/internal/dferrors"
)

// fakeS3 serves a single path style bucket from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	digests map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		f.objects[r.URL.Path] = data
		f.digests[r.URL.Path] = r.Header.Get("X-Amz-Meta-Digest")
		w.WriteHeader(http.StatusOK)
	case http.MethodHead, http.MethodGet:
		data, ok := f.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("X-Amz-Meta-Digest", f.digests[r.URL.Path])
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3_RoundTrip(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(&fakeS3{objects: map[string][]byte{}, digests: map[string]string{}})
	defer server.Close()

	os, err := New(ServiceNameS3, "", server.URL, "ak", "sk")
	require.NoError(t, err)

	meta := os.GetMetadata(context.Background())
	assert.Equal(ServiceNameS3, meta.Name)
	assert.Equal(DefaultS3Region, meta.Region)
	assert.Equal(server.URL, meta.Endpoint)

	ctx := context.Background()
	_, ok, err := os.GetObjectMetadata(ctx, "models", "housing/model.bin")
	assert.NoError(err)
	assert.False(ok)

	err = os.PutObject(ctx, "models", "housing/model.bin", "sha256:abc", bytes.NewReader([]byte("payload")))
	require.NoError(t, err)

	objectMeta, ok, err := os.GetObjectMetadata(ctx, "models", "housing/model.bin")
	require.NoError(t, err)
	assert.True(ok)
	assert.Equal(int64(7), objectMeta.ContentLength)
	assert.Equal("sha256:abc", objectMeta.Digest)

	body, err := os.GetObject(ctx, "models", "housing/model.bin")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	assert.NoError(err)
	assert.Equal("payload", string(data))

	_, err = os.GetObject(ctx, "models", "missing")
	assert.True(dferrors.CheckError(err, dferrors.CodeArtifactNotFound))
}

func TestS3Error(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect func(t *testing.T, err error)
	}{
		{
			name: "nil error",
			err:  nil,
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.NoError(err)
			},
		},
		{
			name: "no such key",
			err:  awserr.New("NoSuchKey", "missing", nil),
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeArtifactNotFound))
			},
		},
		{
			name: "not found status",
			err:  awserr.NewRequestFailure(awserr.New("Whatever", "missing", nil), http.StatusNotFound, "id"),
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeArtifactNotFound))
			},
		},
		{
			name: "entity too large",
			err:  awserr.New("EntityTooLarge", "too large", nil),
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodePayloadTooLarge))
			},
		},
		{
			name: "request entity too large status",
			err:  awserr.NewRequestFailure(awserr.New("Whatever", "too large", nil), http.StatusRequestEntityTooLarge, "id"),
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodePayloadTooLarge))
			},
		},
		{
			name: "transport error",
			err:  errors.New("connection refused"),
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeStoreUnavailable))
				assert.Contains(err.Error(), "connection refused")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.expect(t, s3Error(tc.err, "op %s", "x"))
		})
	}
}

func TestS3MetaValue(t *testing.T) {
	assert := assert.New(t)
	meta := map[string]*string{"Digest": aws.String("sha256:1")}
	assert.Equal("sha256:1", s3MetaValue(meta, MetaDigest))
	assert.Equal("", s3MetaValue(meta, "other"))
	assert.Equal("", s3MetaValue(nil, MetaDigest))
}

func TestNew_UnknownService(t *testing.T) {
	assert := assert.New(t)
	_, err := New("ftp", "", "", "", "")
	assert.Error(err)
}

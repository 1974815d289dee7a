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
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"d7y.io/predictor/internal/dferrors"
	"d7y.io/predictor/pkg/digest"
	"d7y.io/predictor/pkg/objectstorage"
	"d7y.io/predictor/pkg/objectstorage/mocks"
)

const (
	testBucket = "models"
	testKey    = "housing/model.bin"
)

var testPayload = []byte("artifact payload")

func TestStore_Publish(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		options []Option
		mock    func(m *mocks.MockObjectStorageMockRecorder)
		expect  func(t *testing.T, err error)
	}{
		{
			name: "publish",
			data: testPayload,
			mock: func(m *mocks.MockObjectStorageMockRecorder) {
				m.PutObject(gomock.Any(), testBucket, testKey, digest.FromBytes(testPayload), gomock.Any()).
					DoAndReturn(func(ctx context.Context, bucket, key, d string, r io.Reader) error {
						data, err := io.ReadAll(r)
						if err != nil {
							return err
						}

						if !bytes.Equal(data, testPayload) {
							return errors.New("unexpected payload")
						}

						return nil
					}).Times(1)
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.NoError(err)
			},
		},
		{
			name:    "payload too large",
			data:    testPayload,
			options: []Option{WithMaxSize(4)},
			mock:    func(m *mocks.MockObjectStorageMockRecorder) {},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodePayloadTooLarge))
			},
		},
		{
			name:    "create missing bucket",
			data:    testPayload,
			options: []Option{WithCreateBucket(true)},
			mock: func(m *mocks.MockObjectStorageMockRecorder) {
				gomock.InOrder(
					m.IsBucketExist(gomock.Any(), testBucket).Return(false, nil).Times(1),
					m.CreateBucket(gomock.Any(), testBucket).Return(nil).Times(1),
					m.PutObject(gomock.Any(), testBucket, testKey, gomock.Any(), gomock.Any()).Return(nil).Times(1),
				)
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.NoError(err)
			},
		},
		{
			name:    "existing bucket is not created",
			data:    testPayload,
			options: []Option{WithCreateBucket(true)},
			mock: func(m *mocks.MockObjectStorageMockRecorder) {
				gomock.InOrder(
					m.IsBucketExist(gomock.Any(), testBucket).Return(true, nil).Times(1),
					m.PutObject(gomock.Any(), testBucket, testKey, gomock.Any(), gomock.Any()).Return(nil).Times(1),
				)
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.NoError(err)
			},
		},
		{
			name: "store rejects payload",
			data: testPayload,
			mock: func(m *mocks.MockObjectStorageMockRecorder) {
				m.PutObject(gomock.Any(), testBucket, testKey, gomock.Any(), gomock.Any()).
					Return(dferrors.New(dferrors.CodePayloadTooLarge, "EntityTooLarge")).Times(1)
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodePayloadTooLarge))
			},
		},
		{
			name: "unclassified failure is unavailable",
			data: testPayload,
			mock: func(m *mocks.MockObjectStorageMockRecorder) {
				m.PutObject(gomock.Any(), testBucket, testKey, gomock.Any(), gomock.Any()).
					Return(errors.New("connection reset")).Times(1)
			},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeStoreUnavailable))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctl := gomock.NewController(t)
			defer ctl.Finish()
			client := mocks.NewMockObjectStorage(ctl)
			tc.mock(client.EXPECT())

			s := NewStore(client, tc.options...)
			tc.expect(t, s.Publish(context.Background(), tc.data, testBucket, testKey))
		})
	}
}

func TestStore_Fetch(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
		mock    func(m *mocks.MockObjectStorageMockRecorder)
		expect  func(t *testing.T, data []byte, err error)
	}{
		{
			name: "fetch",
			mock: func(m *mocks.MockObjectStorageMockRecorder) {
				gomock.InOrder(
					m.GetObjectMetadata(gomock.Any(), testBucket, testKey).Return(&objectstorage.ObjectMetadata{
						Key:           testKey,
						ContentLength: int64(len(testPayload)),
						Digest:        digest.FromBytes(testPayload),
					}, true, nil).Times(1),
					m.GetObject(gomock.Any(), testBucket, testKey).Return(io.NopCloser(bytes.NewReader(testPayload)), nil).Times(1),
				)
			},
			expect: func(t *testing.T, data []byte, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal(testPayload, data)
			},
		},
		{
			name: "fetch without recorded digest",
			mock: func(m *mocks.MockObjectStorageMockRecorder) {
				gomock.InOrder(
					m.GetObjectMetadata(gomock.Any(), testBucket, testKey).Return(&objectstorage.ObjectMetadata{
						ContentLength: int64(len(testPayload)),
					}, true, nil).Times(1),
					m.GetObject(gomock.Any(), testBucket, testKey).Return(io.NopCloser(bytes.NewReader(testPayload)), nil).Times(1),
				)
			},
			expect: func(t *testing.T, data []byte, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal(testPayload, data)
			},
		},
		{
			name: "artifact not found",
			mock: func(m *mocks.MockObjectStorageMockRecorder) {
				m.GetObjectMetadata(gomock.Any(), testBucket, testKey).Return(nil, false, nil).Times(1)
			},
			expect: func(t *testing.T, data []byte, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeArtifactNotFound))
				assert.Nil(data)
			},
		},
		{
			name: "store unavailable",
			mock: func(m *mocks.MockObjectStorageMockRecorder) {
				m.GetObjectMetadata(gomock.Any(), testBucket, testKey).Return(nil, false, errors.New("dial tcp: timeout")).Times(1)
			},
			expect: func(t *testing.T, data []byte, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeStoreUnavailable))
			},
		},
		{
			name:    "recorded size too large",
			options: []Option{WithMaxSize(4)},
			mock: func(m *mocks.MockObjectStorageMockRecorder) {
				m.GetObjectMetadata(gomock.Any(), testBucket, testKey).Return(&objectstorage.ObjectMetadata{
					ContentLength: int64(len(testPayload)),
				}, true, nil).Times(1)
			},
			expect: func(t *testing.T, data []byte, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodePayloadTooLarge))
			},
		},
		{
			name:    "body larger than recorded size",
			options: []Option{WithMaxSize(4)},
			mock: func(m *mocks.MockObjectStorageMockRecorder) {
				gomock.InOrder(
					m.GetObjectMetadata(gomock.Any(), testBucket, testKey).Return(&objectstorage.ObjectMetadata{
						ContentLength: 2,
						Digest:        digest.FromBytes(testPayload),
					}, true, nil).Times(1),
					m.GetObject(gomock.Any(), testBucket, testKey).Return(io.NopCloser(bytes.NewReader(testPayload)), nil).Times(1),
				)
			},
			expect: func(t *testing.T, data []byte, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodePayloadTooLarge))
			},
		},
		{
			name: "digest mismatch",
			mock: func(m *mocks.MockObjectStorageMockRecorder) {
				gomock.InOrder(
					m.GetObjectMetadata(gomock.Any(), testBucket, testKey).Return(&objectstorage.ObjectMetadata{
						ContentLength: int64(len(testPayload)),
						Digest:        digest.FromBytes([]byte("something else")),
					}, true, nil).Times(1),
					m.GetObject(gomock.Any(), testBucket, testKey).Return(io.NopCloser(bytes.NewReader(testPayload)), nil).Times(1),
				)
			},
			expect: func(t *testing.T, data []byte, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeStoreUnavailable))
				assert.ErrorIs(err, digest.ErrDigestMismatch)
			},
		},
		{
			name: "get object keeps backend code",
			mock: func(m *mocks.MockObjectStorageMockRecorder) {
				gomock.InOrder(
					m.GetObjectMetadata(gomock.Any(), testBucket, testKey).Return(&objectstorage.ObjectMetadata{}, true, nil).Times(1),
					m.GetObject(gomock.Any(), testBucket, testKey).Return(nil, dferrors.New(dferrors.CodeArtifactNotFound, "NoSuchKey")).Times(1),
				)
			},
			expect: func(t *testing.T, data []byte, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeArtifactNotFound))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctl := gomock.NewController(t)
			defer ctl.Finish()
			client := mocks.NewMockObjectStorage(ctl)
			tc.mock(client.EXPECT())

			s := NewStore(client, tc.options...)
			data, err := s.Fetch(context.Background(), testBucket, testKey)
			tc.expect(t, data, err)
		})
	}
}

// memoryStorage keeps objects in a map so publish and fetch can be chained.
type memoryStorage struct {
	objectstorage.ObjectStorage
	objects map[string][]byte
	digests map[string]string
}

func (m *memoryStorage) GetObjectMetadata(ctx context.Context, bucket, key string) (*objectstorage.ObjectMetadata, bool, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, false, nil
	}

	return &objectstorage.ObjectMetadata{Key: key, ContentLength: int64(len(data)), Digest: m.digests[bucket+"/"+key]}, true, nil
}

func (m *memoryStorage) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.objects[bucket+"/"+key])), nil
}

func (m *memoryStorage) PutObject(ctx context.Context, bucket, key, d string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.objects[bucket+"/"+key] = data
	m.digests[bucket+"/"+key] = d
	return nil
}

func TestStore_PublishFetch(t *testing.T) {
	assert := assert.New(t)
	s := NewStore(&memoryStorage{objects: map[string][]byte{}, digests: map[string]string{}})
	ctx := context.Background()

	_, err := s.Fetch(ctx, testBucket, testKey)
	assert.True(dferrors.CheckError(err, dferrors.CodeArtifactNotFound))

	// Publishing the same bytes twice leaves the same object behind.
	assert.NoError(s.Publish(ctx, testPayload, testBucket, testKey))
	assert.NoError(s.Publish(ctx, testPayload, testBucket, testKey))
	data, err := s.Fetch(ctx, testBucket, testKey)
	assert.NoError(err)
	assert.Equal(testPayload, data)

	d, err := s.Digest(ctx, testBucket, testKey)
	assert.NoError(err)
	assert.Equal(digest.FromBytes(testPayload), d)

	// Last writer wins.
	assert.NoError(s.Publish(ctx, []byte("newer"), testBucket, testKey))
	data, err = s.Fetch(ctx, testBucket, testKey)
	assert.NoError(err)
	assert.Equal([]byte("newer"), data)
}

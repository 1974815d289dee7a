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

package reloader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"d7y.io/predictor/internal/dferrors"
	"d7y.io/predictor/pkg/artifact"
	"d7y.io/predictor/pkg/boosting"
	"d7y.io/predictor/pkg/digest"
	"d7y.io/predictor/predictor/model"
	"d7y.io/predictor/predictor/reloader/mocks"
	"d7y.io/predictor/trainer/dataset"
)

var (
	mockBucket = "models"
	mockKey    = "housing/model.bin"
)

func mockArtifact(t *testing.T, runID string) []byte {
	t.Helper()
	data, err := artifact.Encode(&artifact.Model{
		FormatVersion: artifact.FormatVersion,
		RunID:         runID,
		CreatedAt:     time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		FeatureNames:  dataset.FeatureNames,
		TargetName:    dataset.TargetName,
		Params:        boosting.DefaultParams(),
		Booster: &boosting.Booster{
			NumFeatures: len(dataset.FeatureNames),
			Objective:   boosting.ObjectiveSquaredError,
			BaseScore:   22,
		},
	})
	require.NoError(t, err)
	return data
}

func TestReloader_Reload(t *testing.T) {
	tests := []struct {
		name   string
		mock   func(t *testing.T, h *model.Handle, m *mocks.MockStoreMockRecorder)
		expect func(t *testing.T, h *model.Handle, r Reloader, info *model.Info, err error)
	}{
		{
			name: "load fetched model",
			mock: func(t *testing.T, h *model.Handle, m *mocks.MockStoreMockRecorder) {
				m.Fetch(gomock.Any(), mockBucket, mockKey).Return(mockArtifact(t, "foo"), nil).Times(1)
			},
			expect: func(t *testing.T, h *model.Handle, r Reloader, info *model.Info, err error) {
				assert := assert.New(t)
				require.NoError(t, err)
				assert.Equal("foo", info.RunID)
				assert.Equal(uint64(1), info.Generation)
				assert.True(h.Ready())
				assert.NoError(r.LastError())
			},
		},
		{
			name: "model not found",
			mock: func(t *testing.T, h *model.Handle, m *mocks.MockStoreMockRecorder) {
				m.Fetch(gomock.Any(), mockBucket, mockKey).Return(nil, dferrors.New(dferrors.CodeArtifactNotFound, "not found")).Times(1)
			},
			expect: func(t *testing.T, h *model.Handle, r Reloader, info *model.Info, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeArtifactNotFound))
				assert.Nil(info)
				assert.False(h.Ready())
				assert.Equal(err, r.LastError())
			},
		},
		{
			name: "corrupt model keeps the served one",
			mock: func(t *testing.T, h *model.Handle, m *mocks.MockStoreMockRecorder) {
				require.NoError(t, h.Load(mockArtifact(t, "bar")))
				m.Fetch(gomock.Any(), mockBucket, mockKey).Return([]byte("foo"), nil).Times(1)
			},
			expect: func(t *testing.T, h *model.Handle, r Reloader, info *model.Info, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeCorruptArtifact))
				served, ok := h.Info()
				require.True(t, ok)
				assert.Equal("bar", served.RunID)
				assert.Error(r.LastError())
			},
		},
		{
			name: "fetch honors timeout",
			mock: func(t *testing.T, h *model.Handle, m *mocks.MockStoreMockRecorder) {
				m.Fetch(gomock.Any(), mockBucket, mockKey).DoAndReturn(func(ctx context.Context, bucket, key string) ([]byte, error) {
					_, ok := ctx.Deadline()
					assert.True(t, ok)
					return nil, dferrors.Wrap(context.DeadlineExceeded, dferrors.CodeStoreUnavailable, "get object")
				}).Times(1)
			},
			expect: func(t *testing.T, h *model.Handle, r Reloader, info *model.Info, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeStoreUnavailable))
				assert.True(errors.Is(err, context.DeadlineExceeded))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctl := gomock.NewController(t)
			defer ctl.Finish()
			store := mocks.NewMockStore(ctl)
			h := model.New()
			tc.mock(t, h, store.EXPECT())

			r := New(store, h, mockBucket, mockKey, WithTimeout(time.Second))
			info, err := r.Reload(context.Background())
			tc.expect(t, h, r, info, err)
		})
	}
}

func TestReloader_ReloadCallerCanceled(t *testing.T) {
	assert := assert.New(t)
	ctl := gomock.NewController(t)
	defer ctl.Finish()
	store := mocks.NewMockStore(ctl)
	data := mockArtifact(t, "foo")

	var once sync.Once
	fetching := make(chan struct{})
	release := make(chan struct{})
	store.EXPECT().Fetch(gomock.Any(), mockBucket, mockKey).DoAndReturn(func(ctx context.Context, bucket, key string) ([]byte, error) {
		once.Do(func() { close(fetching) })
		select {
		case <-release:
			return data, nil
		case <-ctx.Done():
			return nil, dferrors.Wrap(ctx.Err(), dferrors.CodeStoreUnavailable, "get object")
		}
	}).MinTimes(1)

	h := model.New()
	r := New(store, h, mockBucket, mockKey, WithTimeout(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	canceled := make(chan error, 1)
	go func() {
		_, err := r.Reload(ctx)
		canceled <- err
	}()

	select {
	case <-fetching:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch was never called")
	}

	type result struct {
		info *model.Info
		err  error
	}
	background := make(chan result, 1)
	go func() {
		info, err := r.Reload(context.Background())
		background <- result{info, err}
	}()

	// Let the background caller join the running fetch.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-canceled:
		assert.ErrorIs(err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("canceled caller is still waiting")
	}

	close(release)
	select {
	case res := <-background:
		require.NoError(t, res.err)
		assert.Equal("foo", res.info.RunID)
	case <-time.After(5 * time.Second):
		t.Fatal("background caller did not return")
	}

	assert.True(h.Ready())
	assert.NoError(r.LastError())
}

func TestReloader_Check(t *testing.T) {
	served := mockArtifact(t, "served")
	latest := mockArtifact(t, "latest")

	tests := []struct {
		name   string
		mock   func(m *mocks.MockStoreMockRecorder)
		expect func(t *testing.T, h *model.Handle, r *reloader)
	}{
		{
			name: "digest unchanged",
			mock: func(m *mocks.MockStoreMockRecorder) {
				m.Digest(gomock.Any(), mockBucket, mockKey).Return(digest.FromBytes(served), nil).Times(1)
			},
			expect: func(t *testing.T, h *model.Handle, r *reloader) {
				assert := assert.New(t)
				info, _ := h.Info()
				assert.Equal("served", info.RunID)
				assert.Equal(uint64(1), info.Generation)
			},
		},
		{
			name: "digest changed",
			mock: func(m *mocks.MockStoreMockRecorder) {
				gomock.InOrder(
					m.Digest(gomock.Any(), mockBucket, mockKey).Return(digest.FromBytes(latest), nil).Times(1),
					m.Fetch(gomock.Any(), mockBucket, mockKey).Return(latest, nil).Times(1),
				)
			},
			expect: func(t *testing.T, h *model.Handle, r *reloader) {
				assert := assert.New(t)
				info, _ := h.Info()
				assert.Equal("latest", info.RunID)
				assert.Equal(uint64(2), info.Generation)
			},
		},
		{
			name: "remote digest is empty",
			mock: func(m *mocks.MockStoreMockRecorder) {
				gomock.InOrder(
					m.Digest(gomock.Any(), mockBucket, mockKey).Return("", nil).Times(1),
					m.Fetch(gomock.Any(), mockBucket, mockKey).Return(served, nil).Times(1),
				)
			},
			expect: func(t *testing.T, h *model.Handle, r *reloader) {
				assert := assert.New(t)
				assert.Equal(uint64(2), h.Generation())
			},
		},
		{
			name: "digest failed",
			mock: func(m *mocks.MockStoreMockRecorder) {
				m.Digest(gomock.Any(), mockBucket, mockKey).Return("", dferrors.New(dferrors.CodeStoreUnavailable, "foo")).Times(1)
			},
			expect: func(t *testing.T, h *model.Handle, r *reloader) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(r.LastError(), dferrors.CodeStoreUnavailable))
				assert.True(h.Ready())
				assert.Equal(uint64(1), h.Generation())
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctl := gomock.NewController(t)
			defer ctl.Finish()
			store := mocks.NewMockStore(ctl)
			tc.mock(store.EXPECT())

			h := model.New()
			require.NoError(t, h.Load(served))
			r := New(store, h, mockBucket, mockKey).(*reloader)
			r.check()
			tc.expect(t, h, r)
		})
	}
}

func TestReloader_Serve(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()
	store := mocks.NewMockStore(ctl)
	data := mockArtifact(t, "foo")

	polled := make(chan struct{}, 1)
	store.EXPECT().Digest(gomock.Any(), mockBucket, mockKey).DoAndReturn(func(ctx context.Context, bucket, key string) (string, error) {
		select {
		case polled <- struct{}{}:
		default:
		}
		return digest.FromBytes(data), nil
	}).MinTimes(1)

	h := model.New()
	require.NoError(t, h.Load(data))
	r := New(store, h, mockBucket, mockKey, WithInterval(5*time.Millisecond))

	done := make(chan struct{})
	go func() {
		r.Serve()
		close(done)
	}()

	select {
	case <-polled:
	case <-time.After(5 * time.Second):
		t.Fatal("store was never polled")
	}

	r.Stop()
	r.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after stop")
	}
}

func TestReloader_ServeDisabled(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()
	r := New(mocks.NewMockStore(ctl), model.New(), mockBucket, mockKey)

	done := make(chan struct{})
	go func() {
		r.Serve()
		close(done)
	}()

	r.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after stop")
	}
}

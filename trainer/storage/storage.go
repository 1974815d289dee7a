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

//go:generate mockgen -destination mocks/storage_mock.go -source storage.go -package mocks

package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	// DatasetFilePrefix is prefix of dataset file name.
	DatasetFilePrefix = "dataset"

	// ModelFilePrefix is prefix of model file name.
	ModelFilePrefix = "model"

	// CSVFileExt is extension of dataset file name.
	CSVFileExt = "csv"

	// ModelFileExt is extension of model file name.
	ModelFileExt = "bin"
)

// Storage is the interface used for storage.
type Storage interface {
	// CreateDataset writes the downloaded dataset of the given run.
	CreateDataset([]byte, string) error

	// OpenDataset opens the dataset file of the given run for read.
	OpenDataset(string) (io.ReadCloser, error)

	// CreateModel writes the encoded model of the given run.
	CreateModel([]byte, string) error

	// OpenModel opens the model file of the given run for read.
	OpenModel(string) (io.ReadCloser, error)

	// ClearDataset removes the dataset of the given run.
	ClearDataset(string) error

	// ClearModel removes the model of the given run.
	ClearModel(string) error

	// Clear removes all files.
	Clear() error
}

type storage struct {
	baseDir string

	mu            sync.Mutex
	datasetRunIDs map[string]struct{}
	modelRunIDs   map[string]struct{}
}

// New returns a new Storage instance.
func New(baseDir string) Storage {
	return &storage{
		baseDir:       baseDir,
		datasetRunIDs: map[string]struct{}{},
		modelRunIDs:   map[string]struct{}{},
	}
}

// CreateDataset writes the downloaded dataset of the given run.
func (s *storage) CreateDataset(data []byte, runID string) error {
	if err := writeFile(s.datasetFilename(runID), data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasetRunIDs[runID] = struct{}{}
	return nil
}

// OpenDataset opens the dataset file of the given run for read.
func (s *storage) OpenDataset(runID string) (io.ReadCloser, error) {
	return os.Open(s.datasetFilename(runID))
}

// CreateModel writes the encoded model of the given run.
func (s *storage) CreateModel(data []byte, runID string) error {
	if err := writeFile(s.modelFilename(runID), data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelRunIDs[runID] = struct{}{}
	return nil
}

// OpenModel opens the model file of the given run for read.
func (s *storage) OpenModel(runID string) (io.ReadCloser, error) {
	return os.Open(s.modelFilename(runID))
}

// ClearDataset removes the dataset of the given run.
func (s *storage) ClearDataset(runID string) error {
	if err := os.Remove(s.datasetFilename(runID)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.datasetRunIDs, runID)
	return nil
}

// ClearModel removes the model of the given run.
func (s *storage) ClearModel(runID string) error {
	if err := os.Remove(s.modelFilename(runID)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.modelRunIDs, runID)
	return nil
}

// Clear removes all files.
func (s *storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for runID := range s.datasetRunIDs {
		if err := os.Remove(s.datasetFilename(runID)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	for runID := range s.modelRunIDs {
		if err := os.Remove(s.modelFilename(runID)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	s.datasetRunIDs = map[string]struct{}{}
	s.modelRunIDs = map[string]struct{}{}
	return nil
}

// datasetFilename generates dataset file name based on the given run id.
func (s *storage) datasetFilename(runID string) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s-%s.%s", DatasetFilePrefix, runID, CSVFileExt))
}

// modelFilename generates model file name based on the given run id.
func (s *storage) modelFilename(runID string) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s-%s.%s", ModelFilePrefix, runID, ModelFileExt))
}

// writeFile replaces filename with data, a partially written file is removed.
func writeFile(filename string, data []byte) error {
	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, bytes.NewReader(data)); err != nil {
		if err := os.Remove(filename); err != nil {
			return err
		}

		return err
	}

	return nil
}

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

package config

import (
	"time"

	"d7y.io/predictor/pkg/artifact"
	"d7y.io/predictor/pkg/objectstorage"
	"d7y.io/predictor/pkg/unit"
	"d7y.io/predictor/trainer/dataset"
)

const (
	// DefaultLogRotateMaxSize is default maximum size in megabytes of log files.
	DefaultLogRotateMaxSize = 1024

	// DefaultLogRotateMaxAge is default maximum number of days to retain old log files.
	DefaultLogRotateMaxAge = 7

	// DefaultLogRotateMaxBackups is default maximum number of old log files to keep.
	DefaultLogRotateMaxBackups = 20
)

const (
	// DefaultDatasetURL is default location of the housing dataset.
	DefaultDatasetURL = dataset.DefaultURL

	// DefaultDatasetTimeout is default timeout of downloading the dataset.
	DefaultDatasetTimeout = time.Minute

	// DefaultDatasetTestFraction is default fraction of rows held out for evaluation.
	DefaultDatasetTestFraction = 0.2
)

const (
	// DefaultObjectStorageName is default backend of object storage.
	DefaultObjectStorageName = objectstorage.ServiceNameS3

	// DefaultObjectStorageBucket is default bucket of the published model.
	DefaultObjectStorageBucket = "housing-models"

	// DefaultObjectStorageKey is default key of the published model.
	DefaultObjectStorageKey = "boston-housing/model.bin"

	// DefaultObjectStorageTimeout is default timeout of publishing the model.
	DefaultObjectStorageTimeout = 2 * time.Minute

	// DefaultObjectStorageMaxArtifactSize is default maximum size of the published model.
	DefaultObjectStorageMaxArtifactSize = unit.Bytes(artifact.DefaultMaxSize)
)

const (
	// DefaultMetricsJob is default job name of metrics pushed to the pushgateway.
	DefaultMetricsJob = "housing_trainer"
)

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
)

const (
	// DefaultServerListenIP is default listen ip of the prediction server.
	DefaultServerListenIP = "0.0.0.0"

	// DefaultServerPort is default port of the prediction server.
	DefaultServerPort = 8080

	// DefaultLogRotateMaxSize is default maximum size in megabytes of log files.
	DefaultLogRotateMaxSize = 1024

	// DefaultLogRotateMaxAge is default maximum number of days to retain old log files.
	DefaultLogRotateMaxAge = 7

	// DefaultLogRotateMaxBackups is default maximum number of old log files to keep.
	DefaultLogRotateMaxBackups = 20
)

const (
	// DefaultObjectStorageName is default backend of object storage.
	DefaultObjectStorageName = objectstorage.ServiceNameS3

	// DefaultObjectStorageMaxArtifactSize is default maximum size of a fetched model.
	DefaultObjectStorageMaxArtifactSize = unit.Bytes(artifact.DefaultMaxSize)
)

const (
	// DefaultModelBucket is default bucket of the served model.
	DefaultModelBucket = "housing-models"

	// DefaultModelKey is default key of the served model.
	DefaultModelKey = "boston-housing/model.bin"

	// DefaultModelFetchTimeout is default timeout of fetching the model.
	DefaultModelFetchTimeout = time.Minute

	// DefaultModelReloadInterval is default interval of checking the model for changes.
	DefaultModelReloadInterval = 5 * time.Minute
)

const (
	// DefaultRateLimitBurst is default burst of prediction requests.
	DefaultRateLimitBurst = 100
)

const (
	// DefaultMetricsAddr is default address for metrics server.
	DefaultMetricsAddr = ":8000"
)

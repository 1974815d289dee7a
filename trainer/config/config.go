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
	"errors"
	"strings"
	"text/template"
	"time"

	"d7y.io/predictor/cmd/dependency/base"
	"d7y.io/predictor/pkg/boosting"
	"d7y.io/predictor/pkg/objectstorage"
	"d7y.io/predictor/pkg/unit"
)

type Config struct {
	// Base options.
	base.Options `yaml:",inline" mapstructure:",squash"`

	// Server configuration.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Dataset configuration.
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`

	// Training hyperparameters.
	Training boosting.Params `yaml:"training" mapstructure:"training"`

	// ObjectStorage configuration.
	ObjectStorage ObjectStorageConfig `yaml:"objectStorage" mapstructure:"objectStorage"`

	// Metrics configuration.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

type ServerConfig struct {
	// Server log directory.
	LogDir string `yaml:"logDir" mapstructure:"logDir"`

	// Maximum size in megabytes of log files before rotation (default: 1024)
	LogMaxSize int `yaml:"logMaxSize" mapstructure:"logMaxSize"`

	// Maximum number of days to retain old log files (default: 7)
	LogMaxAge int `yaml:"logMaxAge" mapstructure:"logMaxAge"`

	// Maximum number of old log files to keep (default: 20)
	LogMaxBackups int `yaml:"logMaxBackups" mapstructure:"logMaxBackups"`

	// Server storage data directory, holds the downloaded dataset and the local model.
	DataDir string `yaml:"dataDir" mapstructure:"dataDir"`
}

type DatasetConfig struct {
	// URL of the csv dataset, http, https and file schemes are supported.
	URL string `yaml:"url" mapstructure:"url"`

	// Timeout of downloading the dataset.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// TestFraction is the fraction of rows held out for evaluation.
	TestFraction float64 `yaml:"testFraction" mapstructure:"testFraction"`

	// Seed of the split, 0 picks a seed from the clock.
	Seed int64 `yaml:"seed" mapstructure:"seed"`
}

type ObjectStorageConfig struct {
	// Name is object storage name of type, it can be s3, oss or gcs.
	Name string `yaml:"name" mapstructure:"name"`

	// Region is storage region.
	Region string `yaml:"region" mapstructure:"region"`

	// Endpoint is datacenter endpoint.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	// AccessKey is access key ID.
	AccessKey string `yaml:"accessKey" mapstructure:"accessKey"`

	// SecretKey is access key secret.
	SecretKey string `yaml:"secretKey" mapstructure:"secretKey"`

	// Bucket of the published model.
	Bucket string `yaml:"bucket" mapstructure:"bucket"`

	// Key of the published model, used when KeyTemplate is empty.
	Key string `yaml:"key" mapstructure:"key"`

	// KeyTemplate renders the key from {{.RunID}} and {{.Timestamp}}.
	KeyTemplate string `yaml:"keyTemplate" mapstructure:"keyTemplate"`

	// CreateBucket creates the bucket when it does not exist.
	CreateBucket bool `yaml:"createBucket" mapstructure:"createBucket"`

	// Timeout of publishing the model.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// MaxArtifactSize is the largest model accepted by the store.
	MaxArtifactSize unit.Bytes `yaml:"maxArtifactSize" mapstructure:"maxArtifactSize"`
}

type MetricsConfig struct {
	// Enable pushing metrics.
	Enable bool `yaml:"enable" mapstructure:"enable"`

	// PushGateway is the address of the prometheus pushgateway.
	PushGateway string `yaml:"pushGateway" mapstructure:"pushGateway"`

	// Job is the job name of the pushed metrics.
	Job string `yaml:"job" mapstructure:"job"`
}

// New default configuration.
func New() *Config {
	return &Config{
		Options: base.Options{
			PProfPort: -1,
		},
		Server: ServerConfig{
			LogMaxSize:    DefaultLogRotateMaxSize,
			LogMaxAge:     DefaultLogRotateMaxAge,
			LogMaxBackups: DefaultLogRotateMaxBackups,
		},
		Dataset: DatasetConfig{
			URL:          DefaultDatasetURL,
			Timeout:      DefaultDatasetTimeout,
			TestFraction: DefaultDatasetTestFraction,
		},
		Training: boosting.DefaultParams(),
		ObjectStorage: ObjectStorageConfig{
			Name:            DefaultObjectStorageName,
			Bucket:          DefaultObjectStorageBucket,
			Key:             DefaultObjectStorageKey,
			Timeout:         DefaultObjectStorageTimeout,
			MaxArtifactSize: DefaultObjectStorageMaxArtifactSize,
		},
		Metrics: MetricsConfig{
			Enable: false,
			Job:    DefaultMetricsJob,
		},
	}
}

// Validate config parameters.
func (cfg *Config) Validate() error {
	if cfg.Dataset.URL == "" {
		return errors.New("dataset requires parameter url")
	}

	if cfg.Dataset.Timeout <= 0 {
		return errors.New("dataset requires parameter timeout")
	}

	if !(cfg.Dataset.TestFraction > 0 && cfg.Dataset.TestFraction < 1) {
		return errors.New("dataset requires parameter testFraction")
	}

	if err := cfg.Training.Validate(); err != nil {
		return err
	}

	switch cfg.ObjectStorage.Name {
	case objectstorage.ServiceNameS3, objectstorage.ServiceNameOSS, objectstorage.ServiceNameGCS:
	default:
		return errors.New("objectStorage requires parameter name")
	}

	if cfg.ObjectStorage.Bucket == "" {
		return errors.New("objectStorage requires parameter bucket")
	}

	if cfg.ObjectStorage.Key == "" && cfg.ObjectStorage.KeyTemplate == "" {
		return errors.New("objectStorage requires parameter key")
	}

	if cfg.ObjectStorage.KeyTemplate != "" {
		if _, err := template.New("key").Option("missingkey=error").Parse(cfg.ObjectStorage.KeyTemplate); err != nil {
			return errors.New("objectStorage requires parameter keyTemplate")
		}
	}

	if cfg.ObjectStorage.Timeout <= 0 {
		return errors.New("objectStorage requires parameter timeout")
	}

	if cfg.ObjectStorage.MaxArtifactSize <= 0 {
		return errors.New("objectStorage requires parameter maxArtifactSize")
	}

	if cfg.Metrics.Enable {
		if cfg.Metrics.PushGateway == "" {
			return errors.New("metrics requires parameter pushGateway")
		}

		if cfg.Metrics.Job == "" {
			return errors.New("metrics requires parameter job")
		}
	}

	return nil
}

func (cfg *Config) Convert() error {
	cfg.ObjectStorage.Name = strings.ToLower(strings.TrimSpace(cfg.ObjectStorage.Name))
	cfg.ObjectStorage.Key = strings.TrimPrefix(cfg.ObjectStorage.Key, "/")

	if cfg.Training.Objective == "" {
		cfg.Training.Objective = boosting.ObjectiveSquaredError
	}

	return nil
}

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
	"net"
	"strings"
	"time"

	"d7y.io/predictor/cmd/dependency/base"
	"d7y.io/predictor/pkg/objectstorage"
	"d7y.io/predictor/pkg/unit"
)

type Config struct {
	// Base options.
	base.Options `yaml:",inline" mapstructure:",squash"`

	// Server configuration.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// ObjectStorage configuration.
	ObjectStorage ObjectStorageConfig `yaml:"objectStorage" mapstructure:"objectStorage"`

	// Model configuration.
	Model ModelConfig `yaml:"model" mapstructure:"model"`

	// RateLimit configuration of prediction requests.
	RateLimit RateLimitConfig `yaml:"rateLimit" mapstructure:"rateLimit"`

	// Metrics configuration.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

type ServerConfig struct {
	// ListenIP is listen ip, like: 0.0.0.0, 192.168.0.1.
	ListenIP string `yaml:"listenIP" mapstructure:"listenIP"`

	// Server port.
	Port int `yaml:"port" mapstructure:"port"`

	// Server log directory.
	LogDir string `yaml:"logDir" mapstructure:"logDir"`

	// Maximum size in megabytes of log files before rotation (default: 1024)
	LogMaxSize int `yaml:"logMaxSize" mapstructure:"logMaxSize"`

	// Maximum number of days to retain old log files (default: 7)
	LogMaxAge int `yaml:"logMaxAge" mapstructure:"logMaxAge"`

	// Maximum number of old log files to keep (default: 20)
	LogMaxBackups int `yaml:"logMaxBackups" mapstructure:"logMaxBackups"`
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

	// MaxArtifactSize is the largest model accepted from the store.
	MaxArtifactSize unit.Bytes `yaml:"maxArtifactSize" mapstructure:"maxArtifactSize"`
}

type ModelConfig struct {
	// Bucket of the served model.
	Bucket string `yaml:"bucket" mapstructure:"bucket"`

	// Key of the served model.
	Key string `yaml:"key" mapstructure:"key"`

	// FetchTimeout is the timeout of a model fetch.
	FetchTimeout time.Duration `yaml:"fetchTimeout" mapstructure:"fetchTimeout"`

	// ReloadInterval is the interval of checking the model for changes, 0 disables it.
	ReloadInterval time.Duration `yaml:"reloadInterval" mapstructure:"reloadInterval"`
}

type RateLimitConfig struct {
	// Limit is the number of prediction requests per second, 0 disables limiting.
	Limit float64 `yaml:"limit" mapstructure:"limit"`

	// Burst is the number of requests allowed at once.
	Burst int `yaml:"burst" mapstructure:"burst"`
}

type MetricsConfig struct {
	// Enable metrics service.
	Enable bool `yaml:"enable" mapstructure:"enable"`

	// Metrics service address.
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// New default configuration.
func New() *Config {
	return &Config{
		Options: base.Options{
			PProfPort: -1,
		},
		Server: ServerConfig{
			ListenIP:      DefaultServerListenIP,
			Port:          DefaultServerPort,
			LogMaxSize:    DefaultLogRotateMaxSize,
			LogMaxAge:     DefaultLogRotateMaxAge,
			LogMaxBackups: DefaultLogRotateMaxBackups,
		},
		ObjectStorage: ObjectStorageConfig{
			Name:            DefaultObjectStorageName,
			MaxArtifactSize: DefaultObjectStorageMaxArtifactSize,
		},
		Model: ModelConfig{
			Bucket:         DefaultModelBucket,
			Key:            DefaultModelKey,
			FetchTimeout:   DefaultModelFetchTimeout,
			ReloadInterval: DefaultModelReloadInterval,
		},
		RateLimit: RateLimitConfig{
			Burst: DefaultRateLimitBurst,
		},
		Metrics: MetricsConfig{
			Enable: false,
			Addr:   DefaultMetricsAddr,
		},
	}
}

// Validate config parameters.
func (cfg *Config) Validate() error {
	if net.ParseIP(cfg.Server.ListenIP) == nil {
		return errors.New("server requires parameter listenIP")
	}

	if cfg.Server.Port <= 0 {
		return errors.New("server requires parameter port")
	}

	switch cfg.ObjectStorage.Name {
	case objectstorage.ServiceNameS3, objectstorage.ServiceNameOSS, objectstorage.ServiceNameGCS:
	default:
		return errors.New("objectStorage requires parameter name")
	}

	if cfg.ObjectStorage.MaxArtifactSize <= 0 {
		return errors.New("objectStorage requires parameter maxArtifactSize")
	}

	if cfg.Model.Bucket == "" {
		return errors.New("model requires parameter bucket")
	}

	if cfg.Model.Key == "" {
		return errors.New("model requires parameter key")
	}

	if cfg.Model.FetchTimeout <= 0 {
		return errors.New("model requires parameter fetchTimeout")
	}

	if cfg.Model.ReloadInterval < 0 {
		return errors.New("model requires parameter reloadInterval")
	}

	if cfg.RateLimit.Limit < 0 {
		return errors.New("rateLimit requires parameter limit")
	}

	if cfg.RateLimit.Limit > 0 && cfg.RateLimit.Burst <= 0 {
		return errors.New("rateLimit requires parameter burst")
	}

	if cfg.Metrics.Enable {
		if cfg.Metrics.Addr == "" {
			return errors.New("metrics requires parameter addr")
		}
	}

	return nil
}

func (cfg *Config) Convert() error {
	if cfg.Server.ListenIP == "" {
		cfg.Server.ListenIP = net.IPv4zero.String()
	}

	cfg.ObjectStorage.Name = strings.ToLower(strings.TrimSpace(cfg.ObjectStorage.Name))
	cfg.Model.Key = strings.TrimPrefix(cfg.Model.Key, "/")
	return nil
}

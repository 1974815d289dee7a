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

package cmd

import (
	"context"
	"os"
	"path"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"d7y.io/predictor/cmd/dependency"
	logger "d7y.io/predictor/internal/dflog"
	"d7y.io/predictor/pkg/dfpath"
	"d7y.io/predictor/pkg/types"
	"d7y.io/predictor/trainer"
	"d7y.io/predictor/trainer/config"
	"d7y.io/predictor/version"
)

var (
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "trainer",
	Short: "the trainer of the housing price model",
	Long: `Trainer is a one-shot process, it downloads the housing dataset, splits it into train and test rows,
trains a gradient boosted trees model, evaluates it and publishes the model artifact to object storage.`,
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Convert config.
		if err := cfg.Convert(); err != nil {
			return err
		}

		// Validate config.
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Initialize dfpath.
		d, err := initDfpath(&cfg.Server)
		if err != nil {
			return errors.Wrap(err, "init dfpath")
		}

		rotateConfig := logger.LogRotateConfig{
			MaxSize:    cfg.Server.LogMaxSize,
			MaxAge:     cfg.Server.LogMaxAge,
			MaxBackups: cfg.Server.LogMaxBackups,
		}

		// Initialize logger.
		if err := logger.InitTrainer(cfg.Verbose, cfg.Console, d.LogDir(), rotateConfig); err != nil {
			return errors.Wrap(err, "init trainer logger")
		}
		logger.RedirectStdoutAndStderr(cfg.Console, path.Join(d.LogDir(), types.TrainerName))

		// One training run per data directory.
		lock := flock.New(d.TrainerLockPath())
		if ok, err := lock.TryLock(); err != nil {
			return errors.Wrapf(err, "lock file %s", d.TrainerLockPath())
		} else if !ok {
			return errors.Errorf("lock file %s failed, other trainer is already running", d.TrainerLockPath())
		}
		defer lock.Unlock()

		return runTrainer(ctx, d)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func init() {
	// Initialize default trainer config.
	cfg = config.New()

	flags := rootCmd.Flags()
	flags.String("dataset-url", cfg.Dataset.URL, "url of the csv dataset, http, https and local paths are supported")
	flags.Float64("test-fraction", cfg.Dataset.TestFraction, "fraction of rows held out for evaluation")
	flags.Int64("seed", cfg.Dataset.Seed, "seed of the train and test split, 0 picks a seed from the clock")
	flags.String("storage-name", cfg.ObjectStorage.Name, "object storage backend, it can be s3, oss or gcs")
	flags.String("region", cfg.ObjectStorage.Region, "region of object storage")
	flags.String("endpoint", cfg.ObjectStorage.Endpoint, "endpoint of object storage")
	flags.String("bucket", cfg.ObjectStorage.Bucket, "bucket of the published model")
	flags.String("key", cfg.ObjectStorage.Key, "key of the published model")

	// Initialize command and config.
	dependency.InitCommandAndConfig(rootCmd, true, cfg,
		dependency.FlagBinding{Key: "dataset.url", Flag: "dataset-url"},
		dependency.FlagBinding{Key: "dataset.testFraction", Flag: "test-fraction"},
		dependency.FlagBinding{Key: "dataset.seed", Flag: "seed"},
		dependency.FlagBinding{Key: "objectStorage.name", Flag: "storage-name"},
		dependency.FlagBinding{Key: "objectStorage.region", Flag: "region"},
		dependency.FlagBinding{Key: "objectStorage.endpoint", Flag: "endpoint"},
		dependency.FlagBinding{Key: "objectStorage.bucket", Flag: "bucket"},
		dependency.FlagBinding{Key: "objectStorage.key", Flag: "key"},
	)
}

func initDfpath(cfg *config.ServerConfig) (dfpath.Dfpath, error) {
	var options []dfpath.Option
	if cfg.LogDir != "" {
		options = append(options, dfpath.WithLogDir(cfg.LogDir))
	}

	if cfg.DataDir != "" {
		options = append(options, dfpath.WithDataDir(cfg.DataDir))
	}

	return dfpath.New(options...)
}

func runTrainer(ctx context.Context, d dfpath.Dfpath) error {
	logger.Infof("version:\n%s", version.Version())

	ff := dependency.InitMonitor(cfg.PProfPort)
	defer ff()

	svr, err := trainer.New(ctx, cfg, d)
	if err != nil {
		return err
	}

	dependency.SetupQuitSignalHandler(func() { svr.Stop() })
	return svr.Serve()
}

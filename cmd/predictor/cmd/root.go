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

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"d7y.io/predictor/cmd/dependency"
	logger "d7y.io/predictor/internal/dflog"
	"d7y.io/predictor/pkg/dfpath"
	"d7y.io/predictor/pkg/types"
	"d7y.io/predictor/predictor"
	"d7y.io/predictor/predictor/config"
	"d7y.io/predictor/version"
)

var (
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "predictor",
	Short: "the prediction server of the housing price model",
	Long: `Predictor loads the housing price model from object storage and serves predictions over http,
it reloads the model when a newer one is published.`,
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

		// Initialize dfpath.
		var options []dfpath.Option
		if cfg.Server.LogDir != "" {
			options = append(options, dfpath.WithLogDir(cfg.Server.LogDir))
		}

		d, err := dfpath.New(options...)
		if err != nil {
			return errors.Wrap(err, "init dfpath")
		}

		rotateConfig := logger.LogRotateConfig{
			MaxSize:    cfg.Server.LogMaxSize,
			MaxAge:     cfg.Server.LogMaxAge,
			MaxBackups: cfg.Server.LogMaxBackups,
		}

		// Initialize logger.
		if err := logger.InitPredictor(cfg.Verbose, cfg.Console, d.LogDir(), rotateConfig); err != nil {
			return errors.Wrap(err, "init predictor logger")
		}
		logger.RedirectStdoutAndStderr(cfg.Console, path.Join(d.LogDir(), types.PredictorName))

		return runPredictor(context.Background())
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
	// Initialize default predictor config.
	cfg = config.New()

	flags := rootCmd.Flags()
	flags.String("listen-ip", cfg.Server.ListenIP, "listen ip of the prediction server")
	flags.Int("port", cfg.Server.Port, "port of the prediction server")
	flags.String("storage-name", cfg.ObjectStorage.Name, "object storage backend, it can be s3, oss or gcs")
	flags.String("region", cfg.ObjectStorage.Region, "region of object storage")
	flags.String("endpoint", cfg.ObjectStorage.Endpoint, "endpoint of object storage")
	flags.String("bucket", cfg.Model.Bucket, "bucket of the served model")
	flags.String("key", cfg.Model.Key, "key of the served model")
	flags.Duration("reload-interval", cfg.Model.ReloadInterval, "interval of checking the model for changes, 0 disables it")

	// Initialize command and config.
	dependency.InitCommandAndConfig(rootCmd, true, cfg,
		dependency.FlagBinding{Key: "server.listenIP", Flag: "listen-ip"},
		dependency.FlagBinding{Key: "server.port", Flag: "port"},
		dependency.FlagBinding{Key: "objectStorage.name", Flag: "storage-name"},
		dependency.FlagBinding{Key: "objectStorage.region", Flag: "region"},
		dependency.FlagBinding{Key: "objectStorage.endpoint", Flag: "endpoint"},
		dependency.FlagBinding{Key: "model.bucket", Flag: "bucket"},
		dependency.FlagBinding{Key: "model.key", Flag: "key"},
		dependency.FlagBinding{Key: "model.reloadInterval", Flag: "reload-interval"},
	)
}

func runPredictor(ctx context.Context) error {
	logger.Infof("version:\n%s", version.Version())

	ff := dependency.InitMonitor(cfg.PProfPort)
	defer ff()

	svr, err := predictor.New(ctx, cfg)
	if err != nil {
		return err
	}

	dependency.SetupQuitSignalHandler(func() { svr.Stop() })
	return svr.Serve()
}

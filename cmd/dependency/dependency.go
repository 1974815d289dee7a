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

package dependency

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/mitchellh/mapstructure"
	"github.com/phayes/freeport"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	logger "d7y.io/predictor/internal/dflog"
	"d7y.io/predictor/pkg/dfpath"
	"d7y.io/predictor/pkg/unit"
)

// FlagBinding binds a command line flag to a configuration key.
type FlagBinding struct {
	Key  string
	Flag string
}

// InitCommandAndConfig adds the common flags and sub commands to cmd, and
// loads the configuration into config before cmd runs. Flags named by
// bindings must already be defined on cmd.
func InitCommandAndConfig(cmd *cobra.Command, useConfigFile bool, config any, bindings ...FlagBinding) {
	cmd.AddCommand(VersionCmd)

	flags := cmd.PersistentFlags()
	flags.Bool("console", false, "whether logger output records to the stdout")
	flags.Bool("verbose", false, "whether logger use debug level")
	flags.Int("pprof-port", -1, "listen port for pprof and statsview, 0 represents random port")
	if useConfigFile {
		flags.String("config", "", fmt.Sprintf("the path of configuration file with yaml extension name, default is %s, it can also be set by env var: %s",
			filepath.Join(dfpath.DefaultConfigDir, cmd.Name()+".yaml"), strings.ToUpper(cmd.Name()+"_config")))
	}

	v := viper.GetViper()
	if err := v.BindPFlags(flags); err != nil {
		panic(fmt.Errorf("bind common flags to viper: %w", err))
	}

	if err := BindFlags(v, cmd, bindings...); err != nil {
		panic(fmt.Errorf("bind %s flags to viper: %w", cmd.Name(), err))
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return LoadConfig(v, useConfigFile, cmd.Root().Name(), config)
	}
}

// BindFlags binds flags of cmd to the given viper instance.
func BindFlags(v *viper.Viper, cmd *cobra.Command, bindings ...FlagBinding) error {
	for _, b := range bindings {
		flag := cmd.Flags().Lookup(b.Flag)
		if flag == nil {
			return fmt.Errorf("flag %s is not defined", b.Flag)
		}

		if err := v.BindPFlag(b.Key, flag); err != nil {
			return err
		}
	}

	return nil
}

// LoadConfig reads the configuration file and the environment into config.
// A missing default configuration file is ignored, a missing file named by
// the config flag is not.
func LoadConfig(v *viper.Viper, useConfigFile bool, name string, config any) error {
	v.SetEnvPrefix(name)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if useConfigFile {
		if cfgFile := v.GetString("config"); cfgFile != "" {
			v.SetConfigFile(cfgFile)
		} else {
			v.AddConfigPath(dfpath.DefaultConfigDir)
			v.SetConfigName(name)
		}
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return pkgerrors.Wrap(err, "read config file")
			}
		}
	}

	if err := v.Unmarshal(config, initDecoderConfig); err != nil {
		return pkgerrors.Wrap(err, "unmarshal config to struct")
	}

	return nil
}

func initDecoderConfig(dc *mapstructure.DecoderConfig) {
	dc.TagName = "yaml"
	dc.Squash = true
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		yamlDecodeHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// yamlDecodeHook decodes types with custom yaml unmarshalers.
func yamlDecodeHook(from, to reflect.Type, v any) (any, error) {
	switch to {
	case reflect.TypeOf(unit.B):
		b, err := yaml.Marshal(v)
		if err != nil {
			return nil, err
		}

		p := reflect.New(to)
		if err := yaml.Unmarshal(b, p.Interface()); err != nil {
			return nil, err
		}

		return p.Elem().Interface(), nil
	default:
		return v, nil
	}
}

// InitMonitor serves pprof and statsview when pprofPort is not negative, the
// returned function stops them.
func InitMonitor(pprofPort int) func() {
	fc := make(chan func(), 1)
	if pprofPort >= 0 {
		go func() {
			if pprofPort == 0 {
				pprofPort, _ = freeport.GetFreePort()
			}

			debugAddr := fmt.Sprintf("%s:%d", net.IPv4zero.String(), pprofPort)
			viewer.SetConfiguration(viewer.WithAddr(debugAddr))

			logger.With("pprof", fmt.Sprintf("http://%s/debug/pprof", debugAddr),
				"statsview", fmt.Sprintf("http://%s/debug/statsview", debugAddr)).
				Infof("enable pprof at %s", debugAddr)

			vm := statsview.New()
			fc <- func() { vm.Stop() }
			if err := vm.Start(); err != nil {
				logger.Warnf("serve pprof error: %v", err)
			}
		}()
	}

	return func() {
		select {
		case f := <-fc:
			logger.Info("stop monitor")
			f()
		default:
		}
	}
}

// SetupQuitSignalHandler calls handler once on the first SIGINT or SIGTERM.
func SetupQuitSignalHandler(handler func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var done bool
		for sig := range signals {
			logger.Warnf("receive %s signal", sig)
			if !done {
				done = true
				handler()
				logger.Warnf("handle signal %s finish", sig)
			}
		}
	}()
}

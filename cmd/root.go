// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd wires the Cobra CLI front-end: format, init, fsck, and mount
// subcommands (mount backgrounds itself through daemon.go unless
// --foreground is set), all sharing one cfg.Config populated by flags and
// an optional config file.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gcsfuse-ext2/go-ext2fs/cfg"
	"github.com/gcsfuse-ext2/go-ext2fs/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	VolumeConfig  cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "ext2fs",
	Short: "Format, inspect, and mount an ext2-like volume image",
	Long: `ext2fs manages a user-space emulation of a Unix-style filesystem
          backed by a single local image file: format creates a new volume,
          init loads an existing one, fsck walks it for consistency, and
          mount exposes it through FUSE.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := cfg.ValidateConfig(&VolumeConfig); err != nil {
			return err
		}
		if err := logger.InitLogFile(VolumeConfig.Logging); err != nil {
			return err
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&VolumeConfig, viper.DecodeHook(cfg.DecodeHook()))
		return
	}

	resolved, err := filepath.Abs(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(resolved)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&VolumeConfig, viper.DecodeHook(cfg.DecodeHook()))
}

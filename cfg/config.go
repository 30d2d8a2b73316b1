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

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully-decoded configuration for a mounted volume: where its
// backing image lives, the on-disk layout parameters to use when formatting
// one, debug knobs, and logging.
type Config struct {
	AppName string `yaml:"app-name"`

	Debug DebugConfig `yaml:"debug"`

	Volume VolumeConfig `yaml:"volume"`

	Logging LoggingConfig `yaml:"logging"`
}

type DebugConfig struct {
	// ExitOnInvariantViolation and LogMutex are bound to the debug_invariants
	// and debug_mutex flags, but no package in this module reads them: they
	// have no effect on the engine.
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`
}

// VolumeConfig describes the on-disk image a command operates against.
type VolumeConfig struct {
	// ImagePath is the backing store file, resolved to an absolute path.
	ImagePath ResolvedPath `yaml:"image-path"`

	BlockSizeBytes int `yaml:"block-size-bytes"`

	InodeSizeBytes int `yaml:"inode-size-bytes"`

	Label string `yaml:"label"`

	MaxOpenFiles int `yaml:"max-open-files"`

	SymlinkHopBudget int `yaml:"symlink-hop-budget"`
}

// LoggingConfig controls the destination, level, and rotation of program
// logs (spec ambient stack: structured logging, independent of any volume).
type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`

	Format string `yaml:"format"`

	FilePath ResolvedPath `yaml:"file-path"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

// LogRotateLoggingConfig mirrors the knobs gopkg.in/natefinch/lumberjack.v2
// exposes for rotating the log file.
type LogRotateLoggingConfig struct {
	MaxFileSizeMb int `yaml:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "", "The application name of this mount.")
	if err = viper.BindPFlag("app-name", flagSet.Lookup("app-name")); err != nil {
		return err
	}

	flagSet.BoolP("debug_invariants", "", false, "Accepted for config compatibility; has no effect.")
	if err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug_invariants")); err != nil {
		return err
	}

	flagSet.BoolP("debug_mutex", "", false, "Accepted for config compatibility; has no effect.")
	if err = viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug_mutex")); err != nil {
		return err
	}

	flagSet.StringP("image-path", "", "", "Path to the volume's backing image file.")
	if err = viper.BindPFlag("volume.image-path", flagSet.Lookup("image-path")); err != nil {
		return err
	}

	flagSet.IntP("block-size-bytes", "", DefaultBlockSizeBytes, "Block size in bytes, used to lay out the image at format and to read it back at init, fsck and mount.")
	if err = viper.BindPFlag("volume.block-size-bytes", flagSet.Lookup("block-size-bytes")); err != nil {
		return err
	}

	flagSet.IntP("inode-size-bytes", "", DefaultInodeSizeBytes, "Inode record size in bytes, used to lay out the image at format and to read it back at init, fsck and mount.")
	if err = viper.BindPFlag("volume.inode-size-bytes", flagSet.Lookup("inode-size-bytes")); err != nil {
		return err
	}

	flagSet.StringP("label", "", "", "Volume label, used only by format.")
	if err = viper.BindPFlag("volume.label", flagSet.Lookup("label")); err != nil {
		return err
	}

	flagSet.IntP("max-open-files", "", DefaultMaxOpenFiles, "Capacity of the open-file table.")
	if err = viper.BindPFlag("volume.max-open-files", flagSet.Lookup("max-open-files")); err != nil {
		return err
	}

	flagSet.IntP("symlink-hop-budget", "", DefaultSymlinkHopBudget, "Maximum symlink hops path resolution will follow.")
	if err = viper.BindPFlag("volume.symlink-hop-budget", flagSet.Lookup("symlink-hop-budget")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", string(InfoLogSeverity), "Minimum severity logged: TRACE, DEBUG, INFO, WARNING, ERROR, or OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log output format: text or json.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to a log file; logs go to stderr when unset.")
	if err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	return nil
}

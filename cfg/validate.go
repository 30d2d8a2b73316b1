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

import "fmt"

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be atleast 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidVolumeConfig(v *VolumeConfig) error {
	if v.BlockSizeBytes <= 0 || v.BlockSizeBytes&(v.BlockSizeBytes-1) != 0 {
		return fmt.Errorf("block-size-bytes must be a positive power of two, got %d", v.BlockSizeBytes)
	}
	if v.InodeSizeBytes <= 0 {
		return fmt.Errorf("inode-size-bytes must be positive, got %d", v.InodeSizeBytes)
	}
	if v.MaxOpenFiles <= 0 {
		return fmt.Errorf("max-open-files must be positive, got %d", v.MaxOpenFiles)
	}
	if v.SymlinkHopBudget <= 0 {
		return fmt.Errorf("symlink-hop-budget must be positive, got %d", v.SymlinkHopBudget)
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}
	if err := isValidVolumeConfig(&config.Volume); err != nil {
		return fmt.Errorf("error parsing volume config: %w", err)
	}
	return nil
}

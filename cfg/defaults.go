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

// GetDefaultLoggingConfig returns the default configuration that is to be
// used during application startup, before the real configuration has been
// parsed (so early log lines still go somewhere sensible).
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: InfoLogSeverity,
		Format:   "text",
		LogRotate: LogRotateLoggingConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}

// GetDefaultVolumeConfig returns the layout parameters format() uses when
// the caller hasn't overridden them on the command line.
func GetDefaultVolumeConfig() VolumeConfig {
	return VolumeConfig{
		BlockSizeBytes:   DefaultBlockSizeBytes,
		InodeSizeBytes:   DefaultInodeSizeBytes,
		MaxOpenFiles:     DefaultMaxOpenFiles,
		SymlinkHopBudget: DefaultSymlinkHopBudget,
	}
}

// Copyright 2026 The go-ext2fs Authors.
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

package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/blockdev"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/engine"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/superblock"
	"github.com/gcsfuse-ext2/go-ext2fs/internal/logger"
	"github.com/jacobsa/timeutil"
	"github.com/spf13/cobra"
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Create a new volume image and seed the root user",
	Long: `format allocates a fresh backing image at --image-path sized for
          --block-size-bytes/--inode-size-bytes, writes the superblock and
          both bitmaps, and creates the root directory and the root user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v := VolumeConfig.Volume

		layout := superblock.NewLayout(v.BlockSizeBytes, v.InodeSizeBytes)
		dev, err := blockdev.Format(string(v.ImagePath), layout.ImageSize())
		if err != nil {
			return fmt.Errorf("creating backing image: %w", err)
		}

		rootPassword, err := promptPassword(cmd, "Set a password for the root user: ")
		if err != nil {
			return err
		}

		eng, err := engine.Format(dev, engine.Config{
			BlockSize:      v.BlockSizeBytes,
			InodeSize:      v.InodeSizeBytes,
			Label:          v.Label,
			HandleCapacity: v.MaxOpenFiles,
			HopBudget:      v.SymlinkHopBudget,
		}, timeutil.RealClock(), rootPassword)
		if err != nil {
			return fmt.Errorf("formatting volume: %w", err)
		}
		if err := eng.Exit(); err != nil {
			return fmt.Errorf("flushing newly formatted volume: %w", err)
		}

		logger.Infof("formatted volume %q at %s", v.Label, v.ImagePath)
		return nil
	},
}

// promptPassword returns the --root-password flag when it is set, for
// non-interactive use (tests, scripted provisioning), and otherwise prompts
// and reads one line from stdin. Unlike a login shell prompt, the volume
// has no notion of a terminal, so there is no echo suppression to wire up
// here.
func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	if rootPasswordFlag != "" {
		return rootPasswordFlag, nil
	}
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var rootPasswordFlag string

func init() {
	formatCmd.Flags().StringVar(&rootPasswordFlag, "root-password", "", "Root user's password (otherwise prompted interactively).")
	rootCmd.AddCommand(formatCmd)
}

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
	"fmt"
	"io"
	"os"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/fsckreport"
	"github.com/gcsfuse-ext2/go-ext2fs/internal/logger"
	"github.com/spf13/cobra"
)

var (
	fsckGzip   bool
	fsckOutput string
)

var fsckCmd = &cobra.Command{
	Use:   "fsck",
	Short: "Walk a volume's directory tree and report consistency violations",
	Long: `fsck opens --image-path read-only (in the sense that it performs no
          namespace mutation) and walks every directory reachable from root,
          reporting link-count mismatches, out-of-range inode references,
          and entries of the wrong type. A clean volume reports zero
          violations; fsck's own exit code is nonzero when it finds any.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer func() {
			if err := eng.Exit(); err != nil {
				logger.Warnf("closing volume: %v", err)
			}
		}()

		report, err := eng.Fsck()
		if err != nil {
			return fmt.Errorf("walking volume: %w", err)
		}

		var out io.Writer = cmd.OutOrStdout()
		if fsckOutput != "" {
			f, err := os.Create(fsckOutput)
			if err != nil {
				return fmt.Errorf("creating report file: %w", err)
			}
			defer f.Close()
			out = f
		}
		if err := fsckreport.Write(out, report, fsckGzip); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}

		if len(report.Violations) > 0 {
			return fmt.Errorf("fsck found %d violation(s)", len(report.Violations))
		}
		return nil
	},
}

func init() {
	fsckCmd.Flags().BoolVar(&fsckGzip, "gzip", false, "Gzip-compress the consistency report.")
	fsckCmd.Flags().StringVar(&fsckOutput, "output", "", "Write the report to this file instead of stdout.")
	rootCmd.AddCommand(fsckCmd)
}

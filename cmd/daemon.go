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
	"os"

	"github.com/jacobsa/daemonize"
	"github.com/kardianos/osext"
)

const inBackgroundEnvVar = "EXT2FS_IN_BACKGROUND"

// daemonizeMount re-execs the current binary with --foreground set and
// waits for the child to signal success or failure, mirroring how a mount
// helper backgrounds itself once the kernel handshake is complete.
func daemonizeMount(mountPoint string) error {
	if os.Getenv(inBackgroundEnvVar) == "true" {
		// Already the re-exec'd child: run in the foreground for real and
		// signal our outcome back to the parent that's waiting on us.
		err := runMount(mountPoint)
		if sigErr := daemonize.SignalOutcome(err); sigErr != nil {
			return fmt.Errorf("signaling outcome to parent: %w", sigErr)
		}
		return err
	}

	path, err := osext.Executable()
	if err != nil {
		return fmt.Errorf("osext.Executable: %w", err)
	}

	args := append([]string{"--foreground"}, os.Args[1:]...)
	env := []string{
		fmt.Sprintf("PATH=%s", os.Getenv("PATH")),
		fmt.Sprintf("%s=true", inBackgroundEnvVar),
	}

	if err := daemonize.Run(path, args, env, os.Stdout); err != nil {
		return fmt.Errorf("daemonize.Run: %w", err)
	}
	fmt.Fprintln(os.Stdout, "File system has been successfully mounted.")
	return nil
}

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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/fuseadapter"
	"github.com/gcsfuse-ext2/go-ext2fs/internal/logger"
	"github.com/gcsfuse-ext2/go-ext2fs/internal/perms"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/spf13/cobra"
)

var foreground bool

var mountCmd = &cobra.Command{
	Use:   "mount <mountpoint>",
	Short: "Mount the volume at --image-path through FUSE",
	Long: `mount loads the volume the way init does and then exposes it at
          the given mountpoint through FUSE, translating kernel operations
          into fs/engine calls until the mountpoint is unmounted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mountPoint := args[0]

		if !foreground {
			return daemonizeMount(mountPoint)
		}
		return runMount(mountPoint)
	},
}

func runMount(mountPoint string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}

	uid, gid, err := perms.MyUserAndGroup()
	if err != nil {
		return fmt.Errorf("determining mount owner: %w", err)
	}

	fsys := fuseadapter.New(eng, uid, gid)
	server := fuseutil.NewFileSystemServer(fsys)

	mountCfg := &fuse.MountConfig{
		FSName:     "ext2fs",
		Subtype:    "ext2fs",
		VolumeName: VolumeConfig.Volume.Label,
	}

	logger.Infof("mounting %s at %s", VolumeConfig.Volume.ImagePath, mountPoint)
	mfs, err := fuse.Mount(mountPoint, server, mountCfg)
	if err != nil {
		_ = eng.Exit()
		return fmt.Errorf("mount: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Infof("received signal, unmounting %s", mountPoint)
		if err := fuse.Unmount(mountPoint); err != nil {
			logger.Errorf("unmount: %v", err)
		}
	}()

	if err := mfs.Join(context.Background()); err != nil {
		_ = eng.Exit()
		return fmt.Errorf("waiting for unmount: %w", err)
	}
	return eng.Exit()
}

func init() {
	mountCmd.Flags().BoolVar(&foreground, "foreground", false, "Run in the foreground instead of forking a background daemon.")
	rootCmd.AddCommand(mountCmd)
}

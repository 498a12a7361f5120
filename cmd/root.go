// Copyright 2025 Google LLC
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
	"path/filepath"
	"runtime/debug"

	"github.com/dbfs/dbfs/cfg"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	MountConfig   cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "dbfs [flags] [mount_point]",
	Short: "Mount a database-backed filesystem volume locally",
	Long: `dbfs is a FUSE filesystem whose entire persistent state — directory
tree, inode metadata and file content — lives in a relational database.
It translates ordinary file I/O into database reads and writes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := cfg.ValidateConfig(&MountConfig); err != nil {
			return err
		}

		mountPoint, err := populateArgs(args)
		if err != nil {
			return err
		}

		return mountAndJoin(context.Background(), mountPoint, &MountConfig)
	},
}

// populateArgs returns the explicit mount point argument or, without one,
// the mount point configured for the volume.
func populateArgs(args []string) (mountPoint string, err error) {
	if len(args) > 0 {
		mountPoint = args[0]
	} else {
		var ok bool
		mountPoint, ok = MountConfig.FileSystem.Mountpoint(MountConfig.Volume)
		if !ok {
			err = fmt.Errorf("no mount point given and none configured for volume %q", MountConfig.Volume)
			return
		}
	}
	mountPoint, err = filepath.Abs(mountPoint)
	if err != nil {
		err = fmt.Errorf("canonicalizing mount point: %w", err)
		return
	}
	return
}

func Execute() {
	defer recoverAndLogCrash()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// recoverAndLogCrash persists a panic's message and stack trace to a crash
// log named "<app-name>.crash.log" in the process's working directory
// before re-raising it, so a mount
// that dies unattended (e.g. under systemd) leaves a record behind.
func recoverAndLogCrash() {
	r := recover()
	if r == nil {
		return
	}

	name := MountConfig.AppName
	if name == "" {
		name = "dbfs"
	}
	cw := &CrashWriter{fileName: name + ".crash.log"}
	fmt.Fprintf(cw, "panic: %v\n%s\n", r, debug.Stack())

	panic(r)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to the config-file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

// yamlTags makes viper.Unmarshal match keys against the config structs'
// yaml tags (e.g. "file-system.block-bits"), the keys BindFlags binds.
var yamlTags viper.DecoderConfigOption = func(c *mapstructure.DecoderConfig) { c.TagName = "yaml" }

func initConfig() {
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&MountConfig, viper.DecodeHook(cfg.DecodeHook()), yamlTags)
		return
	}

	resolved, err := filepath.Abs(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("error while resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(resolved)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("error while reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&MountConfig, viper.DecodeHook(cfg.DecodeHook()), yamlTags)
}

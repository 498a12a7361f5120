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

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully decoded configuration for a mount, populated by
// BindFlags + viper.Unmarshal (see cmd/root.go).
type Config struct {
	AppName string `yaml:"app-name"`

	Volume string `yaml:"volume"`

	FileSystem FileSystemConfig `yaml:"file-system"`

	Database DatabaseConfig `yaml:"database"`

	Logging LoggingConfig `yaml:"logging"`

	Debug DebugConfig `yaml:"debug"`

	Metrics MetricsConfig `yaml:"metrics"`
}

type FileSystemConfig struct {
	// BlockBits is log2 of the file block size; BLOCK_BITS in spec terms.
	BlockBits int `yaml:"block-bits"`

	// BlocksReadAhead is the count of blocks fetched per read-ahead miss.
	BlocksReadAhead int `yaml:"blocks-read-ahead"`

	// Mountpoints maps a volume name to the filesystem path it mounts at.
	Mountpoints Mountpoints `yaml:"mountpoints"`

	// DefaultMediaRoot is the fallback mountpoint for the distinguished
	// "MEDIA" volume when Mountpoints has no entry for it.
	DefaultMediaRoot string `yaml:"default-media-root"`

	FileMode Octal `yaml:"file-mode"`
	DirMode  Octal `yaml:"dir-mode"`

	Uid int `yaml:"uid"`
	Gid int `yaml:"gid"`

	FuseOptions []string `yaml:"fuse-options"`
}

type DatabaseConfig struct {
	Driver Driver `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`
	Format   string      `yaml:"format"`
}

type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`
	LogMutex                 bool `yaml:"log-mutex"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// BindFlags declares every flag on flagSet and binds it into viper under
// the matching dotted key, the same convention the CLI entrypoint uses
// for every other configuration key.
func BindFlags(flagSet *pflag.FlagSet) error {
	bindings := []struct {
		key string
		set func() error
	}{
		{"app-name", func() error {
			flagSet.StringP("app-name", "", "dbfs", "The application name of this mount.")
			return viper.BindPFlag("app-name", flagSet.Lookup("app-name"))
		}},
		{"volume", func() error {
			flagSet.StringP("volume", "", "", "The volume name to mount (its root tree-node name).")
			return viper.BindPFlag("volume", flagSet.Lookup("volume"))
		}},
		{"block-bits", func() error {
			flagSet.IntP("block-bits", "", 19, "log2 of file block size.")
			return viper.BindPFlag("file-system.block-bits", flagSet.Lookup("block-bits"))
		}},
		{"blocks-read-ahead", func() error {
			flagSet.IntP("blocks-read-ahead", "", 10, "Count of blocks fetched per read-ahead miss.")
			return viper.BindPFlag("file-system.blocks-read-ahead", flagSet.Lookup("blocks-read-ahead"))
		}},
		{"mountpoints", func() error {
			flagSet.StringP("mountpoints", "", "", "Comma-separated volume=path pairs (DBFS_MOUNTPOINTS).")
			return viper.BindPFlag("file-system.mountpoints", flagSet.Lookup("mountpoints"))
		}},
		{"default-media-root", func() error {
			flagSet.StringP("default-media-root", "", "/var/lib/dbfs/media", "Fallback mountpoint for the MEDIA volume.")
			return viper.BindPFlag("file-system.default-media-root", flagSet.Lookup("default-media-root"))
		}},
		{"file-mode", func() error {
			flagSet.IntP("file-mode", "", 0644, "Permission bits for files, in octal.")
			return viper.BindPFlag("file-system.file-mode", flagSet.Lookup("file-mode"))
		}},
		{"dir-mode", func() error {
			flagSet.IntP("dir-mode", "", 0755, "Permission bits for directories, in octal.")
			return viper.BindPFlag("file-system.dir-mode", flagSet.Lookup("dir-mode"))
		}},
		{"uid", func() error {
			flagSet.IntP("uid", "", -1, "UID owner of all inodes created by this process (-1: current user).")
			return viper.BindPFlag("file-system.uid", flagSet.Lookup("uid"))
		}},
		{"gid", func() error {
			flagSet.IntP("gid", "", -1, "GID owner of all inodes created by this process (-1: current group).")
			return viper.BindPFlag("file-system.gid", flagSet.Lookup("gid"))
		}},
		{"fuse-options", func() error {
			flagSet.StringArrayP("o", "o", nil, "Additional fuse mount options.")
			return viper.BindPFlag("file-system.fuse-options", flagSet.Lookup("o"))
		}},
		{"db-driver", func() error {
			flagSet.StringP("db-driver", "", "sqlite3", "Database driver: sqlite3 or postgres.")
			return viper.BindPFlag("database.driver", flagSet.Lookup("db-driver"))
		}},
		{"db-dsn", func() error {
			flagSet.StringP("db-dsn", "", "dbfs.sqlite3", "Driver-specific data source name.")
			return viper.BindPFlag("database.dsn", flagSet.Lookup("db-dsn"))
		}},
		{"log-severity", func() error {
			flagSet.StringP("log-severity", "", "INFO", "Logging severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
			return viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity"))
		}},
		{"log-format", func() error {
			flagSet.StringP("log-format", "", "text", "Logging format: text or json.")
			return viper.BindPFlag("logging.format", flagSet.Lookup("log-format"))
		}},
		{"debug-invariants", func() error {
			flagSet.BoolP("debug-invariants", "", false, "Exit when internal invariants are violated.")
			return viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug-invariants"))
		}},
		{"debug-mutex", func() error {
			flagSet.BoolP("debug-mutex", "", false, "Accepted into the config; no mutex logging is performed.")
			return viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug-mutex"))
		}},
		{"metrics", func() error {
			flagSet.BoolP("metrics", "", false, "Serve Prometheus/OpenTelemetry metrics.")
			return viper.BindPFlag("metrics.enabled", flagSet.Lookup("metrics"))
		}},
		{"metrics-address", func() error {
			flagSet.StringP("metrics-address", "", ":9100", "Address for the metrics HTTP endpoint.")
			return viper.BindPFlag("metrics.address", flagSet.Lookup("metrics-address"))
		}},
	}

	for _, b := range bindings {
		if err := b.set(); err != nil {
			return err
		}
	}
	return nil
}

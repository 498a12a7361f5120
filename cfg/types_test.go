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

package cfg_test

import (
	"testing"

	"github.com/dbfs/dbfs/cfg"
	"github.com/stretchr/testify/require"
)

func TestOctalUnmarshalText(t *testing.T) {
	var o cfg.Octal
	require.NoError(t, o.UnmarshalText([]byte("755")))
	require.EqualValues(t, 0o755, o)
}

func TestOctalMarshalText(t *testing.T) {
	o := cfg.Octal(0o644)
	b, err := o.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "644", string(b))
}

func TestOctalUnmarshalTextRejectsGarbage(t *testing.T) {
	var o cfg.Octal
	require.Error(t, o.UnmarshalText([]byte("not-octal")))
}

func TestLogSeverityUnmarshalTextCaseInsensitive(t *testing.T) {
	var s cfg.LogSeverity
	require.NoError(t, s.UnmarshalText([]byte("warning")))
	require.Equal(t, cfg.WarningLogSeverity, s)
}

func TestLogSeverityUnmarshalTextRejectsUnknown(t *testing.T) {
	var s cfg.LogSeverity
	require.Error(t, s.UnmarshalText([]byte("CATASTROPHIC")))
}

func TestLogSeverityRankOrdering(t *testing.T) {
	require.Less(t, cfg.TraceLogSeverity.Rank(), cfg.DebugLogSeverity.Rank())
	require.Less(t, cfg.DebugLogSeverity.Rank(), cfg.InfoLogSeverity.Rank())
	require.Less(t, cfg.ErrorLogSeverity.Rank(), cfg.OffLogSeverity.Rank())
}

func TestLogSeverityRankUnknownIsNegativeOne(t *testing.T) {
	require.Equal(t, -1, cfg.LogSeverity("bogus").Rank())
}

func TestDriverUnmarshalText(t *testing.T) {
	var d cfg.Driver
	require.NoError(t, d.UnmarshalText([]byte("SQLITE3")))
	require.Equal(t, cfg.SQLite, d)
}

func TestDriverUnmarshalTextRejectsUnknown(t *testing.T) {
	var d cfg.Driver
	require.Error(t, d.UnmarshalText([]byte("mysql")))
}

func TestFileSystemConfigMountpointExplicit(t *testing.T) {
	c := cfg.FileSystemConfig{Mountpoints: cfg.Mountpoints{"docs": "/mnt/docs"}}
	p, ok := c.Mountpoint("docs")
	require.True(t, ok)
	require.Equal(t, "/mnt/docs", p)
}

func TestFileSystemConfigMountpointMediaFallback(t *testing.T) {
	c := cfg.FileSystemConfig{DefaultMediaRoot: "/mnt/media"}
	p, ok := c.Mountpoint(cfg.MediaVolume)
	require.True(t, ok)
	require.Equal(t, "/mnt/media", p)
}

func TestFileSystemConfigMountpointMissing(t *testing.T) {
	c := cfg.FileSystemConfig{}
	_, ok := c.Mountpoint("nope")
	require.False(t, ok)
}

func TestGetDefaultLoggingConfig(t *testing.T) {
	d := cfg.GetDefaultLoggingConfig()
	require.Equal(t, cfg.InfoLogSeverity, d.Severity)
	require.Equal(t, "text", d.Format)
}

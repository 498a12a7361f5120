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

func validConfig() *cfg.Config {
	return &cfg.Config{
		Volume: "vol",
		FileSystem: cfg.FileSystemConfig{
			BlockBits:       19,
			BlocksReadAhead: 10,
		},
		Database: cfg.DatabaseConfig{Driver: cfg.SQLite, DSN: ":memory:"},
		Logging:  cfg.LoggingConfig{Severity: cfg.InfoLogSeverity},
	}
}

func TestValidateConfigAccepts(t *testing.T) {
	require.NoError(t, cfg.ValidateConfig(validConfig()))
}

func TestValidateConfigRejectsEmptyVolume(t *testing.T) {
	c := validConfig()
	c.Volume = ""
	require.Error(t, cfg.ValidateConfig(c))
}

func TestValidateConfigRejectsBadBlockBits(t *testing.T) {
	c := validConfig()
	c.FileSystem.BlockBits = 0
	require.Error(t, cfg.ValidateConfig(c))

	c = validConfig()
	c.FileSystem.BlockBits = 31
	require.Error(t, cfg.ValidateConfig(c))
}

func TestValidateConfigRejectsNegativeReadAhead(t *testing.T) {
	c := validConfig()
	c.FileSystem.BlocksReadAhead = -1
	require.Error(t, cfg.ValidateConfig(c))
}

func TestValidateConfigRejectsUnknownDriver(t *testing.T) {
	c := validConfig()
	c.Database.Driver = cfg.Driver("mysql")
	require.Error(t, cfg.ValidateConfig(c))
}

func TestValidateConfigRejectsUnknownSeverity(t *testing.T) {
	c := validConfig()
	c.Logging.Severity = cfg.LogSeverity("bogus")
	require.Error(t, cfg.ValidateConfig(c))
}

func TestValidateConfigAcceptsPostgres(t *testing.T) {
	c := validConfig()
	c.Database.Driver = cfg.Postgres
	c.Database.DSN = "postgres://localhost/dbfs"
	require.NoError(t, cfg.ValidateConfig(c))
}

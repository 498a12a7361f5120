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

import "fmt"

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if config.Volume == "" {
		return fmt.Errorf("a --volume name must be supplied")
	}

	if config.FileSystem.BlockBits <= 0 || config.FileSystem.BlockBits > 30 {
		return fmt.Errorf("block-bits must be in (0, 30], got %d", config.FileSystem.BlockBits)
	}

	if config.FileSystem.BlocksReadAhead < 0 {
		return fmt.Errorf("blocks-read-ahead cannot be negative, got %d", config.FileSystem.BlocksReadAhead)
	}

	if config.Database.Driver != SQLite && config.Database.Driver != Postgres {
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", config.Database.Driver)
	}

	if _, ok := severityRanking[config.Logging.Severity]; !ok {
		return fmt.Errorf("invalid logging.severity: %q", config.Logging.Severity)
	}

	return nil
}

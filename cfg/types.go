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
	"fmt"
	"strconv"
	"strings"
)

// Octal is the datatype for params such as file-mode and dir-mode which
// accept a base-8 value.
type Octal int

func (o *Octal) UnmarshalText(text []byte) error {
	v, err := strconv.ParseInt(string(text) /*base=*/, 8 /*bitSize=*/, 32)
	if err != nil {
		return err
	}
	*o = Octal(v)
	return nil
}

func (o Octal) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(o), 8)), nil
}

// LogSeverity represents the logging severity and can accept the
// following values: "TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "OFF".
type LogSeverity string

// Constants for all supported log severities.
const (
	TraceLogSeverity   LogSeverity = "TRACE"
	DebugLogSeverity   LogSeverity = "DEBUG"
	InfoLogSeverity    LogSeverity = "INFO"
	WarningLogSeverity LogSeverity = "WARNING"
	ErrorLogSeverity   LogSeverity = "ERROR"
	OffLogSeverity     LogSeverity = "OFF"
)

// severityRanking maps each level to an integer for validation and comparison.
var severityRanking = map[LogSeverity]int{
	TraceLogSeverity:   0,
	DebugLogSeverity:   1,
	InfoLogSeverity:    2,
	WarningLogSeverity: 3,
	ErrorLogSeverity:   4,
	OffLogSeverity:     5,
}

func (l *LogSeverity) UnmarshalText(text []byte) error {
	level := LogSeverity(strings.ToUpper(string(text)))
	if _, ok := severityRanking[level]; !ok {
		return fmt.Errorf("invalid log severity level: %s. Must be one of [TRACE, DEBUG, INFO, WARNING, ERROR, OFF]", text)
	}
	*l = level
	return nil
}

// Rank returns the integer representation of the severity rank. Returns
// -1 if the severity is unknown.
func (l LogSeverity) Rank() int {
	if rank, ok := severityRanking[l]; ok {
		return rank
	}
	return -1
}

// Driver is the datatype for the Database.Driver config key.
type Driver string

const (
	SQLite   Driver = "sqlite3"
	Postgres Driver = "postgres"
)

func (d *Driver) UnmarshalText(text []byte) error {
	v := Driver(strings.ToLower(string(text)))
	if v != SQLite && v != Postgres {
		return fmt.Errorf("invalid database driver: %s. Must be one of [sqlite3, postgres]", text)
	}
	*d = v
	return nil
}

// Mountpoints maps a volume name to the filesystem path it mounts at,
// decoded from the DBFS_MOUNTPOINTS configuration key (a comma-separated
// list of volume=path pairs).
type Mountpoints map[string]string

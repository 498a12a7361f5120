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
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// parseMountpoints decodes the DBFS_MOUNTPOINTS configuration value —
// a comma-separated list of volume=path pairs — into a Mountpoints map.
func parseMountpoints(s string) (Mountpoints, error) {
	m := Mountpoints{}
	s = strings.TrimSpace(s)
	if s == "" {
		return m, nil
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid mountpoints entry %q, want volume=path", pair)
		}
		m[parts[0]] = parts[1]
	}
	return m, nil
}

func hookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)
		switch t {
		case reflect.TypeOf(Octal(0)):
			return strconv.ParseInt(s, 8, 32)
		case reflect.TypeOf(LogSeverity("")):
			level := LogSeverity(strings.ToUpper(s))
			if _, ok := severityRanking[level]; !ok {
				return nil, fmt.Errorf("invalid logseverity: %s", s)
			}
			return string(level), nil
		case reflect.TypeOf(Driver("")):
			driver := Driver(strings.ToLower(s))
			if driver != SQLite && driver != Postgres {
				return nil, fmt.Errorf("invalid database driver: %s", s)
			}
			return string(driver), nil
		case reflect.TypeOf(Mountpoints{}):
			return parseMountpoints(s)
		default:
			return data, nil
		}
	}
}

// DecodeHook composes the mapstructure decode hooks used to unmarshal
// viper's raw settings into a Config: custom UnmarshalText types first,
// then our own switch-on-target-type hook, then the library defaults
// for durations and comma-separated slices.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		hookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

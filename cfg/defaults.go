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

// GetDefaultLoggingConfig returns the default configuration that is to
// be used during application startup, before the provided configuration
// has been parsed.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: InfoLogSeverity,
		Format:   "text",
	}
}

// Mountpoint resolves the mountpoint path for a volume name, falling
// back to DefaultMediaRoot for the distinguished MEDIA volume when no
// explicit entry exists.
func (c *FileSystemConfig) Mountpoint(volume string) (string, bool) {
	if p, ok := c.Mountpoints[volume]; ok {
		return p, true
	}
	if volume == MediaVolume && c.DefaultMediaRoot != "" {
		return c.DefaultMediaRoot, true
	}
	return "", false
}

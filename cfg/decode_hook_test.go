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
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/require"
)

func TestParseMountpointsEmpty(t *testing.T) {
	m, err := parseMountpoints("")
	require.NoError(t, err)
	require.Empty(t, m)
}

func TestParseMountpointsMultiple(t *testing.T) {
	m, err := parseMountpoints("docs=/mnt/docs, photos=/mnt/photos")
	require.NoError(t, err)
	require.Equal(t, Mountpoints{"docs": "/mnt/docs", "photos": "/mnt/photos"}, m)
}

func TestParseMountpointsRejectsMalformedEntry(t *testing.T) {
	_, err := parseMountpoints("docs")
	require.Error(t, err)
}

func TestDecodeHookDecodesFileSystemConfig(t *testing.T) {
	raw := map[string]interface{}{
		"block-bits":  "19",
		"file-mode":   "644",
		"dir-mode":    "755",
		"mountpoints": "docs=/mnt/docs",
	}

	var out FileSystemConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     &out,
		// As cmd/root.go's viper.Unmarshal does: yaml tag names, and
		// viper's weak typing for the string "19".
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	require.NoError(t, err)
	require.NoError(t, decoder.Decode(raw))

	require.Equal(t, 19, out.BlockBits)
	require.EqualValues(t, 0o644, out.FileMode)
	require.EqualValues(t, 0o755, out.DirMode)
	require.Equal(t, Mountpoints{"docs": "/mnt/docs"}, out.Mountpoints)
}

func TestDecodeHookRejectsBadSeverityString(t *testing.T) {
	var out LoggingConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     &out,
	})
	require.NoError(t, err)
	require.Error(t, decoder.Decode(map[string]interface{}{"severity": "LOUD"}))
}

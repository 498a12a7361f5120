// Copyright 2024 Google LLC
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

package common

import (
	"context"
	"time"
)

func NewNoopMetrics() MetricHandle {
	var n noopMetrics
	return &n
}

type noopMetrics struct{}

func (*noopMetrics) FSOpsCount(_ int64, _ string)                                     {}
func (*noopMetrics) FSOpsLatency(_ context.Context, _ time.Duration, _ string)        {}
func (*noopMetrics) FSOpsErrorCount(_ int64, _, _ string)                             {}
func (*noopMetrics) DBQueryCount(_ int64, _ string)                                   {}
func (*noopMetrics) DBQueryLatency(_ context.Context, _ time.Duration, _ string)      {}
func (*noopMetrics) DBQueryErrorCount(_ int64, _, _ string)                           {}
func (*noopMetrics) BlockCacheReadCount(_ int64, _ bool)                              {}
func (*noopMetrics) BlockCacheReadBytesCount(_ int64)                                 {}
func (*noopMetrics) BlockCacheReadLatency(_ context.Context, _ time.Duration, _ bool) {}

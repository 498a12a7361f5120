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
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
)

type ShutdownFn func(ctx context.Context) error

// The default time buckets for latency metrics. Every latency histogram
// records microseconds.
var defaultLatencyDistribution = metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000, 10000, 20000, 50000, 100000)

// JoinShutdownFunc combines the provided shutdown functions into a single function.
func JoinShutdownFunc(shutdownFns ...ShutdownFn) ShutdownFn {
	return func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFns {
			if fn == nil {
				continue
			}
			err = errors.Join(err, fn(ctx))
		}
		return err
	}
}

// MetricAttr represents the attributes associated with a metric.
type MetricAttr struct {
	Key, Value string
}

func (a *MetricAttr) String() string {
	return fmt.Sprintf("Key: %s, Value: %s", a.Key, a.Value)
}

// DBMetricHandle covers the storage layer: every query dbfs issues
// against the relational backend, broken down by the SQL operation name
// (e.g. "GetInode", "UpsertBlock").
type DBMetricHandle interface {
	DBQueryCount(inc int64, op string)
	DBQueryLatency(ctx context.Context, latency time.Duration, op string)
	DBQueryErrorCount(inc int64, category, op string)
}

// OpsMetricHandle covers the FUSE-facing side: one counter/histogram
// triple per fuseops.FileSystem method.
type OpsMetricHandle interface {
	FSOpsCount(inc int64, op string)
	FSOpsLatency(ctx context.Context, latency time.Duration, op string)
	FSOpsErrorCount(inc int64, category, op string)
}

// BlockCacheMetricHandle covers the per-handle block cache in the
// openfile package: whether a read was served from the handle's cache
// or required a round trip to the database.
type BlockCacheMetricHandle interface {
	BlockCacheReadCount(inc int64, hit bool)
	BlockCacheReadBytesCount(inc int64)
	BlockCacheReadLatency(ctx context.Context, latency time.Duration, hit bool)
}

type MetricHandle interface {
	DBMetricHandle
	OpsMetricHandle
	BlockCacheMetricHandle
}

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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DBOpKey annotates the storage-layer query method invoked.
	DBOpKey = "db_op"

	// FSOpKey annotates the file system op processed.
	FSOpKey = "fs_op"

	// ErrCategoryKey reduces the cardinality of an error by grouping it.
	ErrCategoryKey = "error_category"

	// CacheHitKey annotates a block-cache read with true or false.
	CacheHitKey = "cache_hit"
)

var (
	fsOpsMeter = otel.Meter("fs_op")
	dbMeter    = otel.Meter("db")
	blockCache = otel.Meter("block_cache")

	fsOpsAttributeSet,
	fsOpsErrorAttributeSet,
	dbOpAttributeSet,
	dbOpErrorAttributeSet,
	cacheHitAttributeSet sync.Map
)

func loadOrStoreAttributeOption[K comparable](mp *sync.Map, key K, gen func() attribute.Set) metric.MeasurementOption {
	if v, ok := mp.Load(key); ok {
		return v.(metric.MeasurementOption)
	}
	v, _ := mp.LoadOrStore(key, metric.WithAttributeSet(gen()))
	return v.(metric.MeasurementOption)
}

func getFSOpsAttributeSet(op string) metric.MeasurementOption {
	return loadOrStoreAttributeOption(&fsOpsAttributeSet, op, func() attribute.Set {
		return attribute.NewSet(attribute.String(FSOpKey, op))
	})
}

type fsOpError struct{ category, op string }

func getFSOpsErrorAttributeSet(category, op string) metric.MeasurementOption {
	return loadOrStoreAttributeOption(&fsOpsErrorAttributeSet, fsOpError{category, op}, func() attribute.Set {
		return attribute.NewSet(attribute.String(ErrCategoryKey, category), attribute.String(FSOpKey, op))
	})
}

func getDBOpAttributeSet(op string) metric.MeasurementOption {
	return loadOrStoreAttributeOption(&dbOpAttributeSet, op, func() attribute.Set {
		return attribute.NewSet(attribute.String(DBOpKey, op))
	})
}

func getDBOpErrorAttributeSet(category, op string) metric.MeasurementOption {
	return loadOrStoreAttributeOption(&dbOpErrorAttributeSet, fsOpError{category, op}, func() attribute.Set {
		return attribute.NewSet(attribute.String(ErrCategoryKey, category), attribute.String(DBOpKey, op))
	})
}

func getCacheHitAttributeSet(hit bool) metric.MeasurementOption {
	return loadOrStoreAttributeOption(&cacheHitAttributeSet, hit, func() attribute.Set {
		return attribute.NewSet(attribute.Bool(CacheHitKey, hit))
	})
}

// otelMetrics is the concrete MetricHandle backing a running mount.
type otelMetrics struct {
	fsOpsCount      metric.Int64Counter
	fsOpsErrorCount metric.Int64Counter
	fsOpsLatency    metric.Float64Histogram

	dbQueryCount      metric.Int64Counter
	dbQueryErrorCount metric.Int64Counter
	dbQueryLatency    metric.Float64Histogram

	blockCacheReadCount      metric.Int64Counter
	blockCacheReadBytesCount metric.Int64Counter
	blockCacheReadLatency    metric.Float64Histogram
}

func (o *otelMetrics) FSOpsCount(inc int64, op string) {
	o.fsOpsCount.Add(context.Background(), inc, getFSOpsAttributeSet(op))
}

func (o *otelMetrics) FSOpsLatency(ctx context.Context, latency time.Duration, op string) {
	o.fsOpsLatency.Record(ctx, float64(latency.Microseconds()), getFSOpsAttributeSet(op))
}

func (o *otelMetrics) FSOpsErrorCount(inc int64, category, op string) {
	o.fsOpsErrorCount.Add(context.Background(), inc, getFSOpsErrorAttributeSet(category, op))
}

func (o *otelMetrics) DBQueryCount(inc int64, op string) {
	o.dbQueryCount.Add(context.Background(), inc, getDBOpAttributeSet(op))
}

func (o *otelMetrics) DBQueryLatency(ctx context.Context, latency time.Duration, op string) {
	o.dbQueryLatency.Record(ctx, float64(latency.Microseconds()), getDBOpAttributeSet(op))
}

func (o *otelMetrics) DBQueryErrorCount(inc int64, category, op string) {
	o.dbQueryErrorCount.Add(context.Background(), inc, getDBOpErrorAttributeSet(category, op))
}

func (o *otelMetrics) BlockCacheReadCount(inc int64, hit bool) {
	o.blockCacheReadCount.Add(context.Background(), inc, getCacheHitAttributeSet(hit))
}

func (o *otelMetrics) BlockCacheReadBytesCount(inc int64) {
	o.blockCacheReadBytesCount.Add(context.Background(), inc)
}

func (o *otelMetrics) BlockCacheReadLatency(ctx context.Context, latency time.Duration, hit bool) {
	o.blockCacheReadLatency.Record(ctx, float64(latency.Microseconds()), getCacheHitAttributeSet(hit))
}

// NewOTelMetrics constructs the full metric set and registers it against
// the process-wide meter provider.
func NewOTelMetrics() (MetricHandle, error) {
	fsOpsCount, err1 := fsOpsMeter.Int64Counter("fs/ops_count", metric.WithDescription("The cumulative number of ops processed by the file system."))
	fsOpsLatency, err2 := fsOpsMeter.Float64Histogram("fs/ops_latency", metric.WithDescription("The cumulative distribution of file system operation latencies."), metric.WithUnit("us"), defaultLatencyDistribution)
	fsOpsErrorCount, err3 := fsOpsMeter.Int64Counter("fs/ops_error_count", metric.WithDescription("The cumulative number of errors generated by file system operations."))

	dbQueryCount, err4 := dbMeter.Int64Counter("db/query_count", metric.WithDescription("The cumulative number of queries issued against the backing database."))
	dbQueryLatency, err5 := dbMeter.Float64Histogram("db/query_latency", metric.WithDescription("The cumulative distribution of database query latencies."), metric.WithUnit("us"), defaultLatencyDistribution)
	dbQueryErrorCount, err6 := dbMeter.Int64Counter("db/query_error_count", metric.WithDescription("The cumulative number of database query errors."))

	blockCacheReadCount, err7 := blockCache.Int64Counter("block_cache/read_count", metric.WithDescription("The cumulative number of block-cache reads, by cache hit or miss."))
	blockCacheReadBytesCount, err8 := blockCache.Int64Counter("block_cache/read_bytes_count", metric.WithDescription("The cumulative number of bytes served from the block cache."), metric.WithUnit("By"))
	blockCacheReadLatency, err9 := blockCache.Float64Histogram("block_cache/read_latency", metric.WithDescription("The cumulative distribution of block-cache read latencies, by cache hit or miss."), metric.WithUnit("us"), defaultLatencyDistribution)

	if err := errors.Join(err1, err2, err3, err4, err5, err6, err7, err8, err9); err != nil {
		return nil, err
	}

	return &otelMetrics{
		fsOpsCount:               fsOpsCount,
		fsOpsLatency:             fsOpsLatency,
		fsOpsErrorCount:          fsOpsErrorCount,
		dbQueryCount:             dbQueryCount,
		dbQueryLatency:           dbQueryLatency,
		dbQueryErrorCount:        dbQueryErrorCount,
		blockCacheReadCount:      blockCacheReadCount,
		blockCacheReadBytesCount: blockCacheReadBytesCount,
		blockCacheReadLatency:    blockCacheReadLatency,
	}, nil
}

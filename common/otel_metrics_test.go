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

package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupOTel(t *testing.T) (*otelMetrics, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)

	m, err := NewOTelMetrics()
	require.NoError(t, err)
	return m.(*otelMetrics), reader
}

// counterTotal sums every data point recorded against the named counter
// metric, across all attribute sets.
func counterTotal(ctx context.Context, t *testing.T, rd *metric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, rd.Collect(ctx, &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

// histogramStats reports the count and value sum recorded against the
// named histogram metric, across all attribute sets.
func histogramStats(ctx context.Context, t *testing.T, rd *metric.ManualReader, name string) (count uint64, sum float64) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, rd.Collect(ctx, &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			if !ok {
				continue
			}
			for _, dp := range hist.DataPoints {
				count += dp.Count
				sum += dp.Sum
			}
		}
	}
	return
}

func waitForMetricsProcessing() {
	time.Sleep(time.Millisecond)
}

func TestFSOpsCount(t *testing.T) {
	m, rd := setupOTel(t)

	m.FSOpsCount(3, OpReadFile)
	m.FSOpsCount(2, OpWriteFile)
	m.FSOpsCount(1, OpReadFile)
	waitForMetricsProcessing()

	assert.EqualValues(t, 6, counterTotal(context.Background(), t, rd, "fs/ops_count"))
}

func TestFSOpsErrorCount(t *testing.T) {
	m, rd := setupOTel(t)

	m.FSOpsErrorCount(5, ErrCategoryNotFound, OpLookUpInode)
	m.FSOpsErrorCount(3, ErrCategoryNotFound, OpLookUpInode)
	waitForMetricsProcessing()

	assert.EqualValues(t, 8, counterTotal(context.Background(), t, rd, "fs/ops_error_count"))
}

func TestFSOpsLatency(t *testing.T) {
	m, rd := setupOTel(t)
	ctx := context.Background()

	m.FSOpsLatency(ctx, 100*time.Microsecond, OpReadFile)
	m.FSOpsLatency(ctx, 200*time.Microsecond, OpReadFile)
	waitForMetricsProcessing()

	count, sum := histogramStats(ctx, t, rd, "fs/ops_latency")
	assert.EqualValues(t, 2, count)
	assert.InDelta(t, 300, sum, 0.001)
}

func TestDBQueryCount(t *testing.T) {
	m, rd := setupOTel(t)

	m.DBQueryCount(4, "GetInode")
	m.DBQueryCount(6, "UpsertBlock")
	waitForMetricsProcessing()

	assert.EqualValues(t, 10, counterTotal(context.Background(), t, rd, "db/query_count"))
}

func TestDBQueryErrorCount(t *testing.T) {
	m, rd := setupOTel(t)

	m.DBQueryErrorCount(1, ErrCategoryDatabase, "UpsertBlock")
	waitForMetricsProcessing()

	assert.EqualValues(t, 1, counterTotal(context.Background(), t, rd, "db/query_error_count"))
}

func TestBlockCacheReadCount(t *testing.T) {
	m, rd := setupOTel(t)

	m.BlockCacheReadCount(7, true)
	m.BlockCacheReadCount(2, false)
	waitForMetricsProcessing()

	assert.EqualValues(t, 9, counterTotal(context.Background(), t, rd, "block_cache/read_count"))
}

func TestBlockCacheReadBytesCount(t *testing.T) {
	m, rd := setupOTel(t)

	m.BlockCacheReadBytesCount(1024)
	m.BlockCacheReadBytesCount(2048)
	waitForMetricsProcessing()

	assert.EqualValues(t, 3072, counterTotal(context.Background(), t, rd, "block_cache/read_bytes_count"))
}

func TestBlockCacheReadLatency(t *testing.T) {
	m, rd := setupOTel(t)
	ctx := context.Background()

	m.BlockCacheReadLatency(ctx, 50*time.Microsecond, true)
	m.BlockCacheReadLatency(ctx, 500*time.Microsecond, false)
	waitForMetricsProcessing()

	count, sum := histogramStats(ctx, t, rd, "block_cache/read_latency")
	assert.EqualValues(t, 2, count)
	assert.InDelta(t, 550, sum, 0.001)
}

// Copyright 2026 The go-ext2fs Authors.
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

package fsckreport_test

import (
	"bytes"
	"testing"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/engine"
	"github.com/gcsfuse-ext2/go-ext2fs/fs/fsckreport"
	"github.com/stretchr/testify/require"
)

func testReport() engine.Report {
	return engine.Report{
		Stat: engine.StatInfo{
			Label:          "testvol",
			BlockSize:      512,
			TotalBlocks:    1000,
			FreeBlocks:     900,
			TotalInodes:    64,
			FreeInodes:     60,
			DirectoryCount: 2,
		},
		Violations: []engine.Violation{
			{InodeNum: 5, Path: "/orphan", Message: "link count mismatch: on-disk 2, observed 1"},
		},
	}
}

func TestWriteThenReadPlainRoundTrips(t *testing.T) {
	report := testReport()

	var buf bytes.Buffer
	require.NoError(t, fsckreport.Write(&buf, report, false))

	got, err := fsckreport.Read(&buf)
	require.NoError(t, err)
	require.Equal(t, report, got)
}

func TestWriteThenReadGzippedRoundTrips(t *testing.T) {
	report := testReport()

	var buf bytes.Buffer
	require.NoError(t, fsckreport.Write(&buf, report, true))

	got, err := fsckreport.Read(&buf)
	require.NoError(t, err)
	require.Equal(t, report, got)
}

func TestReadAutoDetectsGzipVsPlain(t *testing.T) {
	report := testReport()

	var plain, gzipped bytes.Buffer
	require.NoError(t, fsckreport.Write(&plain, report, false))
	require.NoError(t, fsckreport.Write(&gzipped, report, true))

	require.NotEqual(t, plain.Bytes()[:2], gzipped.Bytes()[:2])

	fromPlain, err := fsckreport.Read(&plain)
	require.NoError(t, err)
	fromGzip, err := fsckreport.Read(&gzipped)
	require.NoError(t, err)
	require.Equal(t, fromPlain, fromGzip)
}

func TestCleanReportHasNoViolations(t *testing.T) {
	report := engine.Report{Stat: testReport().Stat}

	var buf bytes.Buffer
	require.NoError(t, fsckreport.Write(&buf, report, false))
	require.Contains(t, buf.String(), "clean: true")
}

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

// Package fsckreport renders an engine.Report as YAML, optionally gzipped,
// for fsck's --gzip output option.
package fsckreport

import (
	"bytes"
	"io"

	"github.com/gcsfuse-ext2/go-ext2fs/fs/engine"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"
)

// document is the YAML-facing shape: engine.Report's fields renamed to the
// snake_case keys a report reader would expect, with a top-level "clean"
// flag so a consumer doesn't have to check len(violations) itself. RunID
// distinguishes successive fsck runs against the same volume when reports
// are archived for later comparison.
type document struct {
	RunID      string         `yaml:"run_id"`
	Clean      bool           `yaml:"clean"`
	Stat       statDoc        `yaml:"stat"`
	Violations []violationDoc `yaml:"violations,omitempty"`
}

type statDoc struct {
	Label          string `yaml:"label"`
	BlockSize      int    `yaml:"block_size"`
	TotalBlocks    int    `yaml:"total_blocks"`
	FreeBlocks     int    `yaml:"free_blocks"`
	TotalInodes    int    `yaml:"total_inodes"`
	FreeInodes     int    `yaml:"free_inodes"`
	DirectoryCount int    `yaml:"directory_count"`
}

type violationDoc struct {
	InodeNum int    `yaml:"inode_num"`
	Path     string `yaml:"path,omitempty"`
	Message  string `yaml:"message"`
}

func toDocument(r engine.Report) document {
	doc := document{
		RunID: uuid.NewString(),
		Clean: len(r.Violations) == 0,
		Stat: statDoc{
			Label:          r.Stat.Label,
			BlockSize:      r.Stat.BlockSize,
			TotalBlocks:    r.Stat.TotalBlocks,
			FreeBlocks:     r.Stat.FreeBlocks,
			TotalInodes:    r.Stat.TotalInodes,
			FreeInodes:     r.Stat.FreeInodes,
			DirectoryCount: r.Stat.DirectoryCount,
		},
	}
	for _, v := range r.Violations {
		doc.Violations = append(doc.Violations, violationDoc{
			InodeNum: v.InodeNum,
			Path:     v.Path,
			Message:  v.Message,
		})
	}
	return doc
}

// Write renders r as YAML to w, gzip-compressing the stream when gzipped is
// true.
func Write(w io.Writer, r engine.Report, gzipped bool) error {
	raw, err := yaml.Marshal(toDocument(r))
	if err != nil {
		return err
	}

	if !gzipped {
		_, err := w.Write(raw)
		return err
	}

	gw := gzip.NewWriter(w)
	if _, err := gw.Write(raw); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

// Read parses a report previously produced by Write, auto-detecting gzip
// by sniffing the stream's magic bytes.
func Read(r io.Reader) (engine.Report, error) {
	buffered := bufferAll(r)

	var raw []byte
	if isGzip(buffered) {
		gr, err := gzip.NewReader(bytes.NewReader(buffered))
		if err != nil {
			return engine.Report{}, err
		}
		defer gr.Close()
		data, err := io.ReadAll(gr)
		if err != nil {
			return engine.Report{}, err
		}
		raw = data
	} else {
		raw = buffered
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return engine.Report{}, err
	}

	report := engine.Report{
		Stat: engine.StatInfo{
			Label:          doc.Stat.Label,
			BlockSize:      doc.Stat.BlockSize,
			TotalBlocks:    doc.Stat.TotalBlocks,
			FreeBlocks:     doc.Stat.FreeBlocks,
			TotalInodes:    doc.Stat.TotalInodes,
			FreeInodes:     doc.Stat.FreeInodes,
			DirectoryCount: doc.Stat.DirectoryCount,
		},
	}
	for _, v := range doc.Violations {
		report.Violations = append(report.Violations, engine.Violation{
			InodeNum: v.InodeNum,
			Path:     v.Path,
			Message:  v.Message,
		})
	}
	return report, nil
}

func bufferAll(r io.Reader) []byte {
	buf, _ := io.ReadAll(r)
	return buf
}

func isGzip(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b
}

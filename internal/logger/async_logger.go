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

package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncLogger buffers writes to an underlying io.WriteCloser (normally a
// lumberjack.Logger doing rotation) on a background goroutine, so a slow or
// blocking rotation never stalls the caller holding the engine's mutex.
// Writes past the buffer's capacity are dropped rather than blocking.
type AsyncLogger struct {
	out  io.WriteCloser
	msgs chan []byte
	done chan struct{}

	closeOnce sync.Once
}

// NewAsyncLogger starts the background writer goroutine and returns a
// logger ready to accept writes.
func NewAsyncLogger(out io.WriteCloser, bufferSize int) *AsyncLogger {
	a := &AsyncLogger{
		out:  out,
		msgs: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncLogger) run() {
	defer close(a.done)
	for b := range a.msgs {
		if _, err := a.out.Write(b); err != nil {
			fmt.Fprintf(os.Stderr, "asynclogger: write failed: %v\n", err)
		}
	}
}

// Write copies p and enqueues it for the background writer. It never
// blocks: if the buffer is full, the message is dropped and a warning is
// printed to stderr.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	b := make([]byte, len(p))
	copy(b, p)
	select {
	case a.msgs <- b:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

// Close drains the remaining buffered messages, waits for the background
// writer to finish, and closes the underlying writer.
func (a *AsyncLogger) Close() error {
	a.closeOnce.Do(func() { close(a.msgs) })
	<-a.done
	return a.out.Close()
}

package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"wildkeep/server/logging"
)

// JSONFile appends events as newline-delimited JSON. Writes are buffered and
// flushed periodically so the router goroutine never waits on disk.
type JSONFile struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewJSONFile opens (or creates) the file at path for appending.
func NewJSONFile(path string, flushInterval time.Duration) (*JSONFile, error) {
	if path == "" {
		return nil, fmt.Errorf("json sink: empty file path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("json sink: create dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("json sink: open %s: %w", path, err)
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	s := &JSONFile{
		file:   file,
		writer: bufio.NewWriter(file),
		ticker: time.NewTicker(flushInterval),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.flushLoop()
	return s, nil
}

// Write satisfies logging.Sink.
func (s *JSONFile) Write(event logging.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("json sink: marshal: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return nil
	}
	if _, err := s.writer.Write(data); err != nil {
		return err
	}
	return s.writer.WriteByte('\n')
}

// Close flushes pending lines and closes the file.
func (s *JSONFile) Close(context.Context) error {
	close(s.done)
	s.ticker.Stop()
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return nil
	}
	flushErr := s.writer.Flush()
	closeErr := s.file.Close()
	s.writer = nil
	s.file = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (s *JSONFile) flushLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.mu.Lock()
			if s.writer != nil {
				s.writer.Flush()
			}
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

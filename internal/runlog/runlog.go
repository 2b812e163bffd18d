// Package runlog persists one JSON record per completed benchmark run in an
// append-only, newline-delimited file.
package runlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrEmptyPath is returned by Open for an empty path.
var ErrEmptyPath = errors.New("runlog: empty path")

// Record is one completed run as seen by both sides.
type Record struct {
	ProducerStatus json.RawMessage `json:"producer_status"`
	ConsumerStatus json.RawMessage `json:"consumer_status"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Log is an append-only NDJSON file.
type Log struct {
	path string

	// mu serialises appends from this process. Appends from other processes
	// rely on O_APPEND and a single write per record.
	mu sync.Mutex
}

// Open prepares a log at path, creating its directory if needed. The file
// itself is created on the first Append.
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("runlog: create directory: %w", err)
	}

	return &Log{path: path}, nil
}

// Path returns the file path.
func (l *Log) Path() string { return l.path }

// Append writes rec as a single line. Either the whole line reaches the file
// in one write or an error is returned.
func (l *Log) Append(rec Record) error {
	line, err := encode(rec)
	if err != nil {
		return fmt.Errorf("runlog: encode record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("runlog: create directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("runlog: open: %w", err)
	}

	n, err := f.Write(line)
	if err == nil && n < len(line) {
		err = io.ErrShortWrite
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return fmt.Errorf("runlog: append: %w", err)
	}

	return nil
}

// encode returns rec as one compact JSON line including the trailing newline.
func encode(rec Record) ([]byte, error) {
	var err error

	if rec.ProducerStatus, err = compact(rec.ProducerStatus); err != nil {
		return nil, fmt.Errorf("producer_status: %w", err)
	}
	if rec.ConsumerStatus, err = compact(rec.ConsumerStatus); err != nil {
		return nil, fmt.Errorf("consumer_status: %w", err)
	}

	line, err := codec.Marshal(rec)
	if err != nil {
		return nil, err
	}

	return append(line, '\n'), nil
}

// compact strips insignificant whitespace so embedded documents never span
// lines.
func compact(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Tail returns the last n parseable records, oldest first. Lines that fail
// to parse, such as one cut short by a crash mid-append, are skipped. A
// missing file yields no records.
func (l *Log) Tail(n int) ([]Record, error) {
	if n <= 0 {
		return []Record{}, nil
	}

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("runlog: open: %w", err)
	}
	defer f.Close()

	ring := make([]Record, 0, n)
	r := bufio.NewReader(f)

	for {
		line, readErr := r.ReadBytes('\n')

		if line = bytes.TrimSpace(line); len(line) > 0 {
			var rec Record
			if codec.Unmarshal(line, &rec) == nil {
				if len(ring) == n {
					copy(ring, ring[1:])
					ring = ring[:n-1]
				}
				ring = append(ring, rec)
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("runlog: read: %w", readErr)
		}
	}

	return ring, nil
}

// Package journal persists outbound order requests so in-flight requests can
// be detected and resolved after a crash restart. Records are appended before
// the first send and retired once the request resolves.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var ErrClosed = errors.New("journal closed")

const (
	opSend   = "send"
	opRetire = "retire"
)

// Config controls journal placement and durability.
type Config struct {
	Dir      string
	FileName string
	// SyncOnAppend fsyncs every send record so the journal survives a crash
	// that happens between write and send.
	SyncOnAppend bool
}

func (c Config) withDefaults() Config {
	if c.FileName == "" {
		c.FileName = "journal.log"
	}
	return c
}

func (c Config) path() string {
	return filepath.Join(c.Dir, c.FileName)
}

type record struct {
	Op            string `json:"op"`
	CorrelationID string `json:"corr_id"`
	Payload       []byte `json:"payload,omitempty"`
	Time          int64  `json:"time"`
}

// Entry is one outstanding request recovered from the journal.
type Entry struct {
	CorrelationID string
	Payload       []byte
}

// Journal is an append-only log of correlation id to outbound request.
type Journal struct {
	cfg Config

	mu     sync.Mutex
	file   *os.File
	w      *bufio.Writer
	closed bool
}

// Open creates the journal directory if needed and opens the log for append.
func Open(cfg Config) (*Journal, error) {
	cfg = cfg.withDefaults()
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(cfg.path(), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{cfg: cfg, file: file, w: bufio.NewWriter(file)}, nil
}

// Append records an outbound request. It must return before the request is
// first sent.
func (j *Journal) Append(corrID string, payload []byte) error {
	return j.write(record{
		Op:            opSend,
		CorrelationID: corrID,
		Payload:       payload,
		Time:          time.Now().UTC().UnixNano(),
	}, j.cfg.SyncOnAppend)
}

// Retire marks a request as resolved.
func (j *Journal) Retire(corrID string) error {
	return j.write(record{
		Op:            opRetire,
		CorrelationID: corrID,
		Time:          time.Now().UTC().UnixNano(),
	}, false)
}

// Close flushes and closes the log.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	flushErr := j.w.Flush()
	closeErr := j.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (j *Journal) write(rec record, sync bool) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	if _, err := j.w.Write(data); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := j.w.Flush(); err != nil {
		return err
	}
	if sync {
		return j.file.Sync()
	}
	return nil
}

// Replay reads the journal and returns the requests that were still in
// flight, in append order. A missing journal file yields no entries.
func Replay(cfg Config) ([]Entry, error) {
	cfg = cfg.withDefaults()
	file, err := os.Open(cfg.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	outstanding := make(map[string][]byte)
	var order []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			// A torn final line from a crash mid-write is expected; anything
			// else is still unrecoverable noise we skip over.
			continue
		}
		switch rec.Op {
		case opSend:
			if _, ok := outstanding[rec.CorrelationID]; !ok {
				order = append(order, rec.CorrelationID)
			}
			outstanding[rec.CorrelationID] = rec.Payload
		case opRetire:
			delete(outstanding, rec.CorrelationID)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var entries []Entry
	for _, corrID := range order {
		if payload, ok := outstanding[corrID]; ok {
			entries = append(entries, Entry{CorrelationID: corrID, Payload: payload})
		}
	}
	return entries, nil
}

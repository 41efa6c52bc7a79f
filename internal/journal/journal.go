// Package journal persists a diagnostics trail of relayed events and
// broadcast frames. It is an observability aid for replaying incidents, not a
// persistence layer: the relay never reads the journal back and restarts start
// from an empty world.
package journal

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"planetfall/relay/internal/logging"
)

var bundleNameCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

const frameFlushInterval = time.Second

// Manifest describes the journal bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version    int    `json:"version"`
	CreatedAt  string `json:"created_at"`
	EventsPath string `json:"events_path"`
	FramesPath string `json:"frames_path"`
}

// Stats is a point-in-time summary of what the journal has absorbed.
type Stats struct {
	Events        int64 `json:"events"`
	Frames        int64 `json:"frames"`
	PendingFrames int   `json:"pending_frames"`
	WriteErrors   int64 `json:"write_errors"`
}

type frameBlob struct {
	Sequence   uint64
	CapturedAt time.Time
	Payload    []byte
}

// Journal streams relay traffic to a compressed on-disk bundle. Events go to
// a snappy-framed JSONL stream immediately; broadcast frames are batched and
// written length-prefixed into a zstd stream on a one-second cadence.
type Journal struct {
	mu          sync.Mutex
	dir         string
	log         *logging.Logger
	now         func() time.Time
	eventFile   *os.File
	eventStream *snappy.Writer
	frameFile   *os.File
	frameStream *zstd.Encoder
	pending     []frameBlob
	lastFlush   time.Time
	sequence    uint64
	stats       Stats
	closed      bool
}

// Option customises optional Journal behaviour.
type Option func(*Journal)

// WithClock overrides the journal's time source for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(j *Journal) {
		if clock != nil {
			j.now = clock
		}
	}
}

// New prepares a fresh bundle directory under root and opens compressed sinks.
func New(root, label string, logger *logging.Logger, opts ...Option) (*Journal, error) {
	if root == "" {
		return nil, fmt.Errorf("journal root must be provided")
	}
	if logger == nil {
		logger = logging.L()
	}

	journal := &Journal{log: logger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(journal)
		}
	}

	cleaned := bundleNameCleaner.ReplaceAllString(label, "")
	if cleaned == "" {
		cleaned = "relay"
	}
	created := journal.now().UTC()
	folder := fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z"))
	path := filepath.Join(root, folder)

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}

	eventFile, err := os.Create(filepath.Join(path, "events.jsonl.sz"))
	if err != nil {
		return nil, err
	}
	frameFile, err := os.Create(filepath.Join(path, "frames.bin.zst"))
	if err != nil {
		eventFile.Close()
		return nil, err
	}
	frameStream, err := zstd.NewWriter(frameFile)
	if err != nil {
		eventFile.Close()
		frameFile.Close()
		return nil, err
	}

	manifest := Manifest{
		Version:    1,
		CreatedAt:  created.Format(time.RFC3339Nano),
		EventsPath: "events.jsonl.sz",
		FramesPath: "frames.bin.zst",
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(path, "manifest.json"), data, 0o644)
	}
	if err != nil {
		frameStream.Close()
		frameFile.Close()
		eventFile.Close()
		return nil, err
	}

	journal.dir = path
	journal.eventFile = eventFile
	journal.eventStream = snappy.NewBufferedWriter(eventFile)
	journal.frameFile = frameFile
	journal.frameStream = frameStream
	return journal, nil
}

// Directory exposes the directory backing the bundle.
func (j *Journal) Directory() string {
	if j == nil {
		return ""
	}
	return j.dir
}

// RecordEvent appends one relayed event to the compressed event log. Failures
// are counted and logged; the relay path never blocks on journal health.
func (j *Journal) RecordEvent(eventType string, payload []byte) {
	if j == nil {
		return
	}
	captured := j.now().UTC()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}

	//1.- Base64 keeps the line parseable even if a payload ever carries raw newlines.
	record := struct {
		CapturedAt string `json:"captured_at"`
		Type       string `json:"type"`
		PayloadB64 string `json:"payload_b64"`
	}{
		CapturedAt: captured.Format(time.RFC3339Nano),
		Type:       eventType,
		PayloadB64: base64.StdEncoding.EncodeToString(payload),
	}
	line, err := json.Marshal(record)
	if err == nil {
		_, err = j.eventStream.Write(append(line, '\n'))
	}
	if err == nil {
		err = j.eventStream.Flush()
	}
	if err != nil {
		j.stats.WriteErrors++
		j.log.Debug("journal event write failed", logging.Error(err))
		return
	}
	j.stats.Events++
}

// RecordFrame buffers one broadcast frame; batches are flushed on a fixed cadence.
func (j *Journal) RecordFrame(payload []byte) {
	if j == nil {
		return
	}
	captured := j.now().UTC()
	clone := append([]byte(nil), payload...)

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}

	j.sequence++
	j.pending = append(j.pending, frameBlob{Sequence: j.sequence, CapturedAt: captured, Payload: clone})
	j.stats.Frames++
	j.stats.PendingFrames = len(j.pending)

	if j.lastFlush.IsZero() {
		j.lastFlush = captured
		return
	}
	if captured.Sub(j.lastFlush) >= frameFlushInterval {
		if err := j.flushLocked(); err != nil {
			j.stats.WriteErrors++
			j.log.Debug("journal frame flush failed", logging.Error(err))
		}
		j.lastFlush = captured
	}
}

// Dump forces every buffered frame to disk and returns the current stats.
func (j *Journal) Dump() (Stats, error) {
	if j == nil {
		return Stats{}, fmt.Errorf("journal not initialised")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return j.stats, fmt.Errorf("journal closed")
	}

	if err := j.flushLocked(); err != nil {
		j.stats.WriteErrors++
		return j.stats, err
	}
	if err := j.eventStream.Flush(); err != nil {
		j.stats.WriteErrors++
		return j.stats, err
	}
	j.lastFlush = j.now().UTC()
	return j.stats, nil
}

// Snapshot reports the current stats without forcing a flush.
func (j *Journal) Snapshot() Stats {
	if j == nil {
		return Stats{}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

// Close flushes everything and releases the file handles; the first failure wins.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true

	var firstErr error
	if err := j.flushLocked(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := j.eventStream.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := j.eventStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := j.eventFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := j.frameStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := j.frameFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// flushLocked writes buffered frames length-prefixed to the zstd stream;
// callers must hold the mutex.
func (j *Journal) flushLocked() error {
	if len(j.pending) == 0 {
		return nil
	}
	//1.- A fixed header per frame lets tooling step the stream without parsing payloads.
	for _, frame := range j.pending {
		header := make([]byte, 8+8+4)
		binary.LittleEndian.PutUint64(header[0:8], frame.Sequence)
		binary.LittleEndian.PutUint64(header[8:16], uint64(frame.CapturedAt.UnixNano()))
		binary.LittleEndian.PutUint32(header[16:20], uint32(len(frame.Payload)))
		if _, err := j.frameStream.Write(header); err != nil {
			return err
		}
		if _, err := j.frameStream.Write(frame.Payload); err != nil {
			return err
		}
	}
	j.pending = j.pending[:0]
	j.stats.PendingFrames = 0
	return nil
}

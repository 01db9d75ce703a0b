// Package actionlog archives accepted actions as hourly zstd-compressed
// JSONL files and replays them through the reducer.
package actionlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/freeeve/conquest/pkg/conquest"
)

// Record kinds.
const (
	KindGenesis = "genesis"
	KindAction  = "action"
)

const filePrefix = "actions"

// Record is one archive line: the starting state of a game or one accepted action.
type Record struct {
	Kind   string                   `json:"kind"`
	GameID string                   `json:"gameId"`
	State  *conquest.GameState      `json:"state,omitempty"`
	Entry  *conquest.ActionLogEntry `json:"entry,omitempty"`
}

// Writer appends records to <dir>/actions-YYYY-MM-DD-HH.jsonl.zst, one file per UTC hour.
// Each write is flushed through the encoder, so a crash loses at most the line in flight.
type Writer struct {
	dir string
	now func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewWriter creates a Writer rooted at dir. Files are created lazily.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// WriteGenesis archives the state a game's action stream starts from.
func (w *Writer) WriteGenesis(gs *conquest.GameState) error {
	return w.write(Record{Kind: KindGenesis, GameID: gs.ID, State: gs})
}

// WriteEntries archives accepted action-log entries of a game.
func (w *Writer) WriteEntries(gameID string, entries []conquest.ActionLogEntry) error {
	for i := range entries {
		if err := w.write(Record{Kind: KindAction, GameID: gameID, Entry: &entries[i]}); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) write(rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", rec.Kind, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return fmt.Errorf("rotate archive: %w", err)
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

// Close flushes and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", filePrefix, hour))
}

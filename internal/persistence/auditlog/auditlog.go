// Package auditlog persists the energy event stream as zstd-compressed
// JSONL, rotated by UTC day.
package auditlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"embercore.gg/internal/energy/clock"
	"embercore.gg/internal/energy/events"
)

type Writer struct {
	baseDir string
	prefix  string
	clk     clock.Clock

	mu     sync.Mutex
	curDay string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func NewWriter(baseDir, prefix string, clk clock.Clock) *Writer {
	if clk == nil {
		clk = clock.System{}
	}
	return &Writer{baseDir: baseDir, prefix: prefix, clk: clk}
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := w.clk.Now().UTC().Format("2006-01-02")
	if day != w.curDay {
		if err := w.rotateLocked(day); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) rotateLocked(day string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForDay(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
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
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curDay = day
	return nil
}

func (w *Writer) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *Writer) pathForDay(day string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, day))
}

// Logger stamps energy events with a timestamp and writes them to the
// rotating audit stream. It satisfies events.Recorder, so it plugs
// directly into the pool, scheduler, pipeline and purchase engine.
type Logger struct {
	w   *Writer
	clk clock.Clock
}

func NewLogger(dir string, clk clock.Clock) *Logger {
	if clk == nil {
		clk = clock.System{}
	}
	return &Logger{w: NewWriter(dir, "energy", clk), clk: clk}
}

func (l *Logger) Record(ev events.Event) {
	stamped := make(events.Event, len(ev)+1)
	for k, v := range ev {
		stamped[k] = v
	}
	stamped["ts"] = l.clk.Now().UTC().Format(time.RFC3339Nano)
	_ = l.w.Write(stamped)
}

func (l *Logger) Close() error { return l.w.Close() }

// ReadAll decodes every entry under dir, oldest file first. Used by the
// replay tooling and tests.
func ReadAll(dir string) ([]events.Event, error) {
	names, err := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var out []events.Event
	for _, name := range names {
		evs, err := readFile(name)
		if err != nil {
			return nil, fmt.Errorf("auditlog: %s: %w", name, err)
		}
		out = append(out, evs...)
	}
	return out, nil
}

func readFile(name string) ([]events.Event, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []events.Event
	jd := json.NewDecoder(bufio.NewReader(dec))
	for {
		var ev events.Event
		if err := jd.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

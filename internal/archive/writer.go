// Package archive implements the crash-safe archive-then-replace write
// protocol: snapshot the existing target, write a verified temporary
// replacement, then atomically rename it into place. Every prior version of
// every target survives under the snapshot root, which makes writes
// auditable and reversible.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrZeroByteWrite signals that a write produced an empty artifact. A
// zero-byte file is treated as a corruption signal, never as valid content.
var ErrZeroByteWrite = errors.New("zero-byte write detected")

// snapshotTimeFormat names pre-mutation snapshots.
const snapshotTimeFormat = "20060102_150405"

// Writer persists file-backed artifacts with the archive-then-replace
// protocol and records every successful write in an append-only event log.
type Writer struct {
	snapshotsRoot string
	eventLogPath  string
	logger        *zap.Logger

	now func() time.Time
}

// NewWriter creates a writer. snapshotsRoot receives pre-mutation copies;
// eventLogPath is the append-only structured event log, which this component
// never archives or rotates.
func NewWriter(snapshotsRoot, eventLogPath string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		snapshotsRoot: snapshotsRoot,
		eventLogPath:  eventLogPath,
		logger:        logger,
		now:           time.Now,
	}
}

// event is one line of the write event log.
type event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Category  string    `json:"category"`
	Size      int64     `json:"size"`
	Status    string    `json:"status"`
}

// Write persists content to target under the archive-then-replace protocol:
// snapshot any existing target unmodified, write target.tmp, verify it is
// non-empty, and rename it into place. On any failure the temporary artifact
// is removed and the original target is left exactly as it was.
func (w *Writer) Write(target string, content []byte, category string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	if _, err := os.Stat(target); err == nil {
		if _, err := w.snapshot(target, category); err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", target, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", target, err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, content, 0o600); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	info, err := os.Stat(tmp)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to verify %s: %w", tmp, err)
	}
	if info.Size() == 0 {
		os.Remove(tmp)
		return fmt.Errorf("verifying %s: %w", target, ErrZeroByteWrite)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}

	w.logEvent(event{
		Timestamp: w.now(),
		Action:    "safe_write",
		Target:    target,
		Category:  category,
		Size:      info.Size(),
		Status:    "success",
	})
	return nil
}

// snapshot copies the current target into the snapshot root under a
// timestamped name, leaving the target untouched. Names are made unique when
// two snapshots of the same target land in the same second.
func (w *Writer) snapshot(target, category string) (string, error) {
	dir := filepath.Join(w.snapshotsRoot, category)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}

	base := filepath.Base(target)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	ts := w.now().Format(snapshotTimeFormat)

	path := filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, ts, ext))
	for n := 1; ; n++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%s_%d%s", stem, ts, n, ext))
	}

	if err := copyFile(target, path); err != nil {
		return "", err
	}
	w.logger.Debug("snapshot created",
		zap.String("target", target),
		zap.String("snapshot", path))
	return path, nil
}

// AppendLine appends one line to an append-only JSONL file. The line is
// written in a single O_APPEND write so concurrent readers never observe a
// torn entry boundary.
func (w *Writer) AppendLine(path string, line []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if !strings.HasSuffix(string(line), "\n") {
		line = append(line, '\n')
	}
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return nil
}

// logEvent appends to the event log. A failed event append is logged and
// swallowed: the data write already succeeded and must stay reported as such.
func (w *Writer) logEvent(e event) {
	data, err := json.Marshal(e)
	if err != nil {
		w.logger.Warn("failed to marshal write event", zap.Error(err))
		return
	}
	if err := w.AppendLine(w.eventLogPath, data); err != nil {
		w.logger.Warn("failed to append write event",
			zap.String("target", e.Target),
			zap.Error(err))
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

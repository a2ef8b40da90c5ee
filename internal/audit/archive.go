package audit

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
)

// ArchiveOldSegments compresses (rather than deletes) rotated SQLite
// audit segment files older than cutoff, extending
// logging.go's cleanupOldLogs daily-rotation pattern: a postmortem
// investigation into why a cycle realigned in the field needs the
// history even after the live database has rotated past it, so
// segments are archived as ".zst" instead of removed.
func ArchiveOldSegments(dir string, cutoff time.Time, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "audit: read segment dir %s", dir)
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".zst") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logger.Printf("audit: stat %s: %v", entry.Name(), err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := CompressAndRemove(path); err != nil {
			logger.Printf("audit: archive %s: %v", path, err)
		}
	}
	return nil
}

// CompressAndRemove zstd-compresses path to path+".zst" and removes the
// original. Exported so callers outside the sweep (e.g. a log rotation
// hook archiving a just-closed file) can reuse the same archival step.
func CompressAndRemove(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".zst")
	if err != nil {
		return err
	}
	defer dst.Close()

	enc, err := zstd.NewWriter(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	src.Close()
	return os.Remove(path)
}

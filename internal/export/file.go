package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"trust_gateway/internal/models"
)

// FileWriter appends audit entries as JSON Lines to local files with size
// rotation. For deployments without S3 access.
type FileWriter struct {
	fileTemplate string // e.g. "/var/log/trust-gateway/audit-%s.jsonl"
	maxSize      int64  // maximum size in bytes before rotation
	maxFiles     int    // maximum number of rotated files to keep

	mu          sync.Mutex
	currentFile string
	file        *os.File
	writer      *bufio.Writer
	currentSize int64
	closed      bool
}

// NewFileWriter creates a file writer and opens the first file.
func NewFileWriter(fileTemplate string, maxSize int64, maxFiles int) (*FileWriter, error) {
	w := &FileWriter{
		fileTemplate: fileTemplate,
		maxSize:      maxSize,
		maxFiles:     maxFiles,
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	return w, nil
}

// WriteBatch appends the batch as JSON Lines, rotating between batches when
// the size limit is crossed. Returns the file the batch was written to.
func (w *FileWriter) WriteBatch(ctx context.Context, entries []*models.AuditEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return "", fmt.Errorf("file writer is closed")
	}

	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		line := string(data) + "\n"
		if err := w.rotateIfNeeded(len(line)); err != nil {
			return "", err
		}
		if _, err := w.writer.WriteString(line); err != nil {
			return "", fmt.Errorf("failed to write audit entry: %w", err)
		}
		w.currentSize += int64(len(line))
	}

	if err := w.writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush audit file: %w", err)
	}

	_ = w.cleanupOldFiles()
	return w.currentFile, nil
}

// Close flushes and closes the active file.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}

func (w *FileWriter) newFileName() string {
	timestamp := time.Now().Format("20060102150405.000000000")
	return fmt.Sprintf(w.fileTemplate, timestamp)
}

// openFile opens (or creates) the active file and prepares the buffered
// writer, creating the directory if needed. Caller holds the lock except
// during construction.
func (w *FileWriter) openFile() error {
	w.currentFile = w.newFileName()
	dir := filepath.Dir(w.currentFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	file, err := os.OpenFile(w.currentFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	w.currentSize = fi.Size()
	w.file = file
	w.writer = bufio.NewWriter(file)
	return nil
}

// rotateIfNeeded closes the active file and opens a fresh one when adding n
// bytes would exceed the size limit.
func (w *FileWriter) rotateIfNeeded(n int) error {
	if w.currentSize+int64(n) < w.maxSize {
		return nil
	}

	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	return w.openFile()
}

// cleanupOldFiles removes the oldest rotated files if more than maxFiles exist.
func (w *FileWriter) cleanupOldFiles() error {
	pattern := fmt.Sprintf(w.fileTemplate, "*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	sort.Slice(matches, func(i, j int) bool {
		fi, err1 := os.Stat(matches[i])
		fj, err2 := os.Stat(matches[j])
		if err1 != nil || err2 != nil {
			return false
		}
		return fi.ModTime().Before(fj.ModTime())
	})

	excess := len(matches) - w.maxFiles
	for i := 0; i < excess; i++ {
		if matches[i] == w.currentFile {
			continue
		}
		_ = os.Remove(matches[i])
	}
	return nil
}

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/flowgate/flowgate/pkg/domain"
)

// FileLog appends events as JSON lines to daily files named
// audit-YYYY-MM-DD.jsonl under a base directory.
type FileLog struct {
	mu      sync.Mutex
	baseDir string
	day     string
	file    *os.File
	now     func() time.Time
}

// NewFileLog creates a file-backed audit log rooted at baseDir.
func NewFileLog(baseDir string) (*FileLog, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &FileLog{baseDir: baseDir, now: time.Now}, nil
}

func (l *FileLog) Append(_ context.Context, event domain.AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	day := l.now().UTC().Format("2006-01-02")
	if l.file == nil || day != l.day {
		if l.file != nil {
			l.file.Close()
		}
		path := filepath.Join(l.baseDir, "audit-"+day+".jsonl")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open audit file: %w", err)
		}
		l.file = f
		l.day = day
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	line = append(line, '\n')
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// Close closes the current day file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Package storage keeps the append-only record of keywords the provider
// could not resolve.
package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/logger"
)

// MissingLog appends keywords to a plain-text file, one per line. Existing
// content is never truncated.
type MissingLog struct {
	path string
	mu   sync.Mutex
	log  *logger.Logger
}

func NewMissingLog(path string) *MissingLog {
	return &MissingLog{
		path: path,
		log:  logger.GetLogger().WithField("component", "missing_log"),
	}
}

func (ml *MissingLog) Path() string {
	return ml.path
}

// Append writes keywords in a single write call, opening the file for
// append on every call so a crashed run leaves whatever it already wrote.
func (ml *MissingLog) Append(keywords ...string) error {
	if len(keywords) == 0 {
		return nil
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()

	if dir := filepath.Dir(ml.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create missing log dir: %w", err)
		}
	}

	f, err := os.OpenFile(ml.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open missing log: %w", err)
	}

	var b strings.Builder
	for _, k := range keywords {
		b.WriteString(strings.ReplaceAll(k, "\n", " "))
		b.WriteByte('\n')
	}

	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write missing log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close missing log: %w", err)
	}

	ml.log.WithFields(map[string]interface{}{
		"keywords_count": len(keywords),
		"path":           ml.path,
	}).Debug("Appended missing keywords")
	return nil
}

// ReadMissingLog returns the logged keywords in file order. A file that
// does not exist yet reads as empty.
func ReadMissingLog(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open missing log: %w", err)
	}
	defer f.Close()

	var keywords []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			keywords = append(keywords, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read missing log: %w", err)
	}
	return keywords, nil
}

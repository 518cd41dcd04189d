package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tickWindow/internal/model"
)

// JsonlStorage appends snapshots to a JSONL file. Error records go to a
// sibling file with an ".errors.jsonl" suffix.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// ErrorsPath returns the file receiving error records.
func (s *JsonlStorage) ErrorsPath() string {
	ext := filepath.Ext(s.path)
	return strings.TrimSuffix(s.path, ext) + ".errors.jsonl"
}

func (s *JsonlStorage) PutSnapshots(_ context.Context, snapshots []model.Snapshot) error {
	records := make([]any, len(snapshots))
	for i := range snapshots {
		records[i] = snapshots[i]
	}
	return s.appendLines(s.path, records)
}

func (s *JsonlStorage) PutErrors(_ context.Context, errs []model.ReconstructError) error {
	records := make([]any, len(errs))
	for i := range errs {
		records[i] = errs[i]
	}
	return s.appendLines(s.ErrorsPath(), records)
}

func (s *JsonlStorage) appendLines(path string, records []any) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

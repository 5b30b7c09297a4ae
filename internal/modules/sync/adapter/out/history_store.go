package out

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"studysync/internal/modules/sync/domain"
)

const defaultHistoryLimit = 20

// FileHistoryStore appends one JSON line per sync run.
type FileHistoryStore struct {
	mu   sync.Mutex
	path string
}

func NewFileHistoryStore(dataDir string) *FileHistoryStore {
	return &FileHistoryStore{path: filepath.Join(dataDir, "sync", "history.jsonl")}
}

func (s *FileHistoryStore) Append(_ context.Context, result domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open sync history: %w", err)
	}
	defer file.Close()
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode sync result: %w", err)
	}
	if _, err := file.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write sync history: %w", err)
	}
	return nil
}

// Tail keeps the last limit parseable lines. Lines that do not decode are
// ignored.
func (s *FileHistoryStore) Tail(_ context.Context, limit int) ([]domain.Result, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Result{}, nil
		}
		return nil, fmt.Errorf("open sync history: %w", err)
	}
	defer file.Close()

	buffer := make([]domain.Result, 0, limit)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var result domain.Result
		if err := json.Unmarshal(line, &result); err != nil {
			continue
		}
		if len(buffer) < limit {
			buffer = append(buffer, result)
			continue
		}
		copy(buffer, buffer[1:])
		buffer[len(buffer)-1] = result
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan sync history: %w", err)
	}
	return buffer, nil
}

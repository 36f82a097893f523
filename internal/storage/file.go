package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "voxremind/pkg/logx"
)

// fileStore appends records to <prefix>.firings.jsonl and serves
// RecentFirings from an in-memory tail. When the file grows past twice the
// retention it is rewritten with only the retained tail.
type fileStore struct {
	log  logx.Logger
	path string
	keep int

	mu     sync.Mutex
	f      *os.File
	tail   []Record
	onDisk int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	jpath := filepath.Join(dir, base) + ".firings.jsonl"

	s := &fileStore{log: log, path: jpath, keep: cfg.keep()}
	n, err := s.load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	s.onDisk = n

	f, err := os.OpenFile(jpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	s.f = f
	log.Debug("firing journal opened", logx.String("path", jpath), logx.Int("records", len(s.tail)))
	return s, nil
}

// load reads the journal into the tail and returns the number of lines read.
func (s *fileStore) load() (int, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		n++
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.Type == "" {
			continue
		}
		s.push(r)
	}
	return n, sc.Err()
}

func (s *fileStore) push(r Record) {
	s.tail = append(s.tail, r)
	if len(s.tail) > s.keep {
		s.tail = append(s.tail[:0], s.tail[len(s.tail)-s.keep:]...)
	}
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendFiring(ctx context.Context, r Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("firing journal closed")
	}
	if err := json.NewEncoder(s.f).Encode(r); err != nil {
		return err
	}
	s.push(r)
	s.onDisk++
	if s.onDisk > 2*s.keep {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("firing journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentFirings(ctx context.Context, n int) ([]Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.tail) {
		n = len(s.tail)
	}
	out := make([]Record, 0, n)
	for i := len(s.tail) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.tail[i])
	}
	return out, nil
}

func (s *fileStore) compactLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, r := range s.tail {
		if err := enc.Encode(r); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = s.f.Close()
	renameErr := os.Rename(tmp, s.path)
	nf, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.f = nil
		return err
	}
	s.f = nf
	if renameErr != nil {
		return renameErr
	}
	s.onDisk = len(s.tail)
	return nil
}

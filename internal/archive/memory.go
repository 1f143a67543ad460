package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
)

// MemorySink keeps archives in memory. Safe for concurrent use.
type MemorySink struct {
	mu       sync.RWMutex
	archives map[string][]byte
}

var _ Sink = (*MemorySink)(nil)

func NewMemorySink() *MemorySink {
	return &MemorySink{archives: make(map[string][]byte)}
}

func (m *MemorySink) Put(ctx context.Context, name string, r io.Reader) error {
	if err := validateName(name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.archives[name] = data
	return nil
}

func (m *MemorySink) Get(ctx context.Context, name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.archives[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrArchiveNotFound, name)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return nil
}

func (m *MemorySink) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.archives))
	for name := range m.archives {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

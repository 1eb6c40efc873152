//go:build windows

package volume

import (
	"fmt"
	"io"
	"os"
)

// mapping emulates the unix memory mapping with a heap buffer; flush
// writes the buffer back through the file handle.
type mapping struct {
	f    *os.File
	data []byte
	size int64
}

func openMapping(path string) (*mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open volume %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat volume %s: %w", path, err)
	}
	data := make([]byte, st.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		f.Close()
		return nil, fmt.Errorf("read volume %s: %w", path, err)
	}
	return &mapping{f: f, data: data, size: st.Size()}, nil
}

func (m *mapping) flush() error {
	if _, err := m.f.WriteAt(m.data, 0); err != nil {
		return err
	}
	return m.f.Sync()
}

func (m *mapping) remapDestructive() error {
	if err := m.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if err := m.f.Truncate(m.size); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	m.data = make([]byte, m.size)
	return nil
}

func (m *mapping) close() error {
	if err := m.flush(); err != nil {
		m.f.Close()
		return err
	}
	m.data = nil
	return m.f.Close()
}

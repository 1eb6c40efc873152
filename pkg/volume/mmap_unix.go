//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris || aix

package volume

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mapping is one read/write shared memory mapping of a page file.
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
	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap volume %s: %w", path, err)
	}
	return &mapping{f: f, data: data, size: st.Size()}, nil
}

// flush pushes dirty mapped bytes out to the file.
func (m *mapping) flush() error {
	return unix.Msync(m.data, unix.MS_SYNC)
}

// remapDestructive discards the file contents and maps a fresh zeroed
// region of the same size.
func (m *mapping) remapDestructive() error {
	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	m.data = nil
	if err := m.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if err := m.f.Truncate(m.size); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	data, err := unix.Mmap(int(m.f.Fd()), 0, int(m.size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap: %w", err)
	}
	m.data = data
	return nil
}

func (m *mapping) close() error {
	var first error
	if m.data != nil {
		if err := unix.Msync(m.data, unix.MS_SYNC); err != nil && first == nil {
			first = err
		}
		if err := unix.Munmap(m.data); err != nil && first == nil {
			first = err
		}
		m.data = nil
	}
	if err := m.f.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

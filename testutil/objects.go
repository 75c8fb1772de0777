package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bobg/h5/store"
)

var _ store.Objects = &Objects{}

// Objects is an in-memory store.Objects.
type Objects struct {
	mu sync.Mutex
	m  map[string][]byte
}

// NewObjects produces an empty Objects.
func NewObjects() *Objects {
	return &Objects{m: make(map[string][]byte)}
}

// List implements store.Objects.
func (o *Objects) List(_ context.Context, prefix string, f func(string, int64) error) error {
	o.mu.Lock()
	var names []string
	sizes := make(map[string]int64)
	for name, b := range o.m {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
			sizes[name] = int64(len(b))
		}
	}
	o.mu.Unlock()

	sort.Strings(names)
	for _, name := range names {
		if err := f(name, sizes[name]); err != nil {
			return err
		}
	}
	return nil
}

// Get implements store.Objects.
func (o *Objects) Get(_ context.Context, name string, off, n int64) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.m[name]
	if !ok {
		return nil, fmt.Errorf("no object %s", name)
	}
	if off < 0 || n < 0 || off+n > int64(len(b)) {
		return nil, fmt.Errorf("range %d+%d out of bounds for %d-byte object %s", off, n, len(b), name)
	}
	return append([]byte(nil), b[off:off+n]...), nil
}

// Put implements store.Objects.
func (o *Objects) Put(_ context.Context, name string, b []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.m[name] = append([]byte(nil), b...)
	return nil
}

// Package filter implements the chunk filters a dataset's bytes pass through
// on their way into and out of a file.
package filter

import (
	"bytes"
	"compress/flate"
	"compress/lzw"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Filter tells how to transform chunk bytes on their way into and out of a file.
// Out should be the inverse of In.
type Filter interface {
	// ID is the identifier recorded in a dataset's filter pipeline message.
	ID() uint16

	// In transforms chunk bytes on their way into the file.
	In(context.Context, []byte) ([]byte, error)

	// Out transforms chunk bytes on their way out of the file.
	Out(context.Context, []byte) ([]byte, error)
}

// Filter identifiers.
const (
	DeflateID = 1
	LZWID     = 256
	SnappyID  = 257
)

// Deflate is a Filter implementing RFC1951 DEFLATE compression.
type Deflate struct {
	Level int
}

// ID implements Filter.ID.
func (Deflate) ID() uint16 { return DeflateID }

// In implements Filter.In.
func (f Deflate) In(_ context.Context, inp []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	level := f.Level
	if level < -2 || level > 9 {
		level = -1
	}
	w, err := flate.NewWriter(buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(inp); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Out implements Filter.Out.
func (Deflate) Out(_ context.Context, inp []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(inp))
	defer r.Close()
	return io.ReadAll(r)
}

// LZW is a Filter implementing lzw compression.
type LZW struct {
	Order lzw.Order
}

// ID implements Filter.ID.
func (LZW) ID() uint16 { return LZWID }

// In implements Filter.In.
func (l LZW) In(_ context.Context, inp []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := lzw.NewWriter(buf, l.Order, 8)
	if _, err := w.Write(inp); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Out implements Filter.Out.
func (l LZW) Out(_ context.Context, inp []byte) ([]byte, error) {
	r := lzw.NewReader(bytes.NewReader(inp), l.Order, 8)
	defer r.Close()
	return io.ReadAll(r)
}

// Snappy is a Filter implementing snappy block compression.
type Snappy struct{}

// ID implements Filter.ID.
func (Snappy) ID() uint16 { return SnappyID }

// In implements Filter.In.
func (Snappy) In(_ context.Context, inp []byte) ([]byte, error) {
	return snappy.Encode(nil, inp), nil
}

// Out implements Filter.Out.
func (Snappy) Out(_ context.Context, inp []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, inp)
	return out, errors.Wrap(err, "snappy decoding")
}

var byName = map[string]Filter{
	"deflate": Deflate{Level: -1},
	"lzw":     LZW{Order: lzw.LSB},
	"snappy":  Snappy{},
}

// ByID produces the Filter with the given identifier.
func ByID(id uint16) (Filter, error) {
	for _, f := range byName {
		if f.ID() == id {
			return f, nil
		}
	}
	return nil, fmt.Errorf("unknown filter %d", id)
}

// ByName produces the Filter with the given name,
// one of "deflate," "lzw," and "snappy."
// The empty name and "none" produce a nil Filter.
func ByName(name string) (Filter, error) {
	switch name {
	case "", "none":
		return nil, nil
	}
	if f, ok := byName[strings.ToLower(name)]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("unknown filter %q (choose from %s)", name, strings.Join(Names(), ", "))
}

// Names lists the known filter names.
func Names() []string {
	var names []string
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

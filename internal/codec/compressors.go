package codec

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
)

type noneCodec struct{}

func (noneCodec) Encode(src []byte) ([]byte, error) {
	return bytes.Clone(src), nil
}

func (noneCodec) Decode(src []byte) ([]byte, error) {
	return bytes.Clone(src), nil
}

type snappyCodec struct{}

func (snappyCodec) Encode(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCodec) Decode(src []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("%w: snappy: %v", ErrCompression, err)
	}
	return out, nil
}

// flateCodec handles DEFLATE streams without a zlib header or trailer.
type flateCodec struct {
	level   int
	writers sync.Pool
	readers sync.Pool
}

func newFlateCodec(level int) *flateCodec {
	return &flateCodec{level: level}
}

func (c *flateCodec) Encode(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, ok := c.writers.Get().(*flate.Writer)
	if ok {
		w.Reset(&buf)
	} else {
		var err error
		w, err = flate.NewWriter(&buf, c.level)
		if err != nil {
			return nil, fmt.Errorf("%w: raw-deflate: %v", ErrCompression, err)
		}
	}
	defer c.writers.Put(w)

	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("%w: raw-deflate: %v", ErrCompression, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: raw-deflate: %v", ErrCompression, err)
	}
	return buf.Bytes(), nil
}

func (c *flateCodec) Decode(src []byte) ([]byte, error) {
	br := bytes.NewReader(src)
	r, ok := c.readers.Get().(io.ReadCloser)
	if ok {
		if err := r.(flate.Resetter).Reset(br, nil); err != nil {
			return nil, fmt.Errorf("%w: raw-deflate: %v", ErrCompression, err)
		}
	} else {
		r = flate.NewReader(br)
	}

	out, err := io.ReadAll(r)
	if err != nil {
		_ = r.Close() //nolint:errcheck // reader is discarded after a failed read
		return nil, fmt.Errorf("%w: raw-deflate: %v", ErrCompression, err)
	}
	c.readers.Put(r)
	return out, nil
}

// zlibCodec handles zlib-wrapped DEFLATE streams.
type zlibCodec struct {
	level   int
	writers sync.Pool
}

func newZlibCodec(level int) *zlibCodec {
	return &zlibCodec{level: level}
}

func (c *zlibCodec) Encode(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, ok := c.writers.Get().(*zlib.Writer)
	if ok {
		w.Reset(&buf)
	} else {
		var err error
		w, err = zlib.NewWriterLevel(&buf, c.level)
		if err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", ErrCompression, err)
		}
	}
	defer c.writers.Put(w)

	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("%w: zlib: %v", ErrCompression, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: zlib: %v", ErrCompression, err)
	}
	return buf.Bytes(), nil
}

func (c *zlibCodec) Decode(src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib: %v", ErrCompression, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: zlib: %v", ErrCompression, err)
	}
	return out, nil
}

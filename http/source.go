// Package http provides a ByteSource for world archives served over HTTP.
//
// Zip containers are read from the end (central directory) and then member
// by member, so a Source fetches fixed-size blocks with range requests and
// keeps the most recent ones in memory. An archive can be inspected without
// downloading it first.
package http

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

const (
	defaultBlockSize = 256 << 10
	defaultMaxBlocks = 64
)

var (
	// ErrRangeUnsupported is returned when the server ignores range requests.
	ErrRangeUnsupported = errors.New("http: range requests not supported")

	// ErrChanged is returned when the remote content changes between
	// requests.
	ErrChanged = errors.New("http: remote content changed")
)

// Source implements random access reads via HTTP range requests.
// It satisfies mcworld.ByteSource (io.ReaderAt plus Size) and is safe for
// concurrent use.
type Source struct {
	ctx          context.Context //nolint:containedctx // ReadAt has no context parameter
	url          string
	client       *nethttp.Client
	headers      nethttp.Header
	size         int64
	etag         string
	lastModified string

	blockSize int64
	maxBlocks int

	mu     sync.Mutex
	blocks map[int64]*list.Element
	lru    *list.List
	group  singleflight.Group
}

type block struct {
	index int64
	data  []byte
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Source) {
		if headers == nil {
			return
		}
		s.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithBlockSize sets the size of each range request. Defaults to 256 KiB.
func WithBlockSize(n int64) Option {
	return func(s *Source) {
		s.blockSize = n
	}
}

// WithMaxBlocks bounds the number of blocks kept in memory. Defaults to 64.
func WithMaxBlocks(n int) Option {
	return func(s *Source) {
		s.maxBlocks = n
	}
}

// NewSource creates a Source for url and probes the remote for its size.
// ctx governs the initial range check and every later read.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{
		ctx:       ctx,
		url:       url,
		client:    nethttp.DefaultClient,
		blockSize: defaultBlockSize,
		maxBlocks: defaultMaxBlocks,
		blocks:    make(map[int64]*list.Element),
		lru:       list.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}
	if s.blockSize <= 0 {
		return nil, fmt.Errorf("block size %d must be positive", s.blockSize)
	}
	if s.maxBlocks <= 0 {
		return nil, fmt.Errorf("max blocks %d must be positive", s.maxBlocks)
	}

	size, etag, lastModified, err := s.fetchMetadata()
	if err != nil {
		return nil, err
	}
	s.size = size
	s.etag = etag
	s.lastModified = lastModified
	return s, nil
}

// Size returns the total size of the remote content.
func (s *Source) Size() int64 {
	return s.size
}

// ReadAt reads len(p) bytes at off, fetching any blocks not in memory.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && off < s.size {
		idx := off / s.blockSize
		data, err := s.block(idx)
		if err != nil {
			return n, err
		}
		c := copy(p[n:], data[off-idx*s.blockSize:])
		n += c
		off += int64(c)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// block returns block idx from memory or the remote. Concurrent misses for
// the same block share one request.
func (s *Source) block(idx int64) ([]byte, error) {
	s.mu.Lock()
	if el, ok := s.blocks[idx]; ok {
		s.lru.MoveToFront(el)
		data := el.Value.(*block).data //nolint:forcetypeassert // list holds only blocks
		s.mu.Unlock()
		return data, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(strconv.FormatInt(idx, 10), func() (any, error) {
		start := idx * s.blockSize
		length := min(s.blockSize, s.size-start)
		data, err := s.fetchRange(start, length)
		if err != nil {
			return nil, err
		}
		s.remember(idx, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil //nolint:forcetypeassert // group only returns blocks
}

func (s *Source) remember(idx int64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[idx]; ok {
		return
	}
	s.blocks[idx] = s.lru.PushFront(&block{index: idx, data: data})
	for s.lru.Len() > s.maxBlocks {
		oldest := s.lru.Back()
		s.lru.Remove(oldest)
		delete(s.blocks, oldest.Value.(*block).index) //nolint:forcetypeassert // list holds only blocks
	}
}

func (s *Source) fetchRange(off, length int64) ([]byte, error) {
	req, err := s.newRequest(nethttp.MethodGet)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+length-1))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
		_ = resp.Body.Close()                 //nolint:errcheck // body fully read
	}()

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		// ok
	case nethttp.StatusOK:
		return nil, ErrRangeUnsupported
	case nethttp.StatusPreconditionFailed:
		return nil, ErrChanged
	default:
		return nil, fmt.Errorf("range request failed: %s", resp.Status)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(resp.Body, data); err != nil {
		return nil, fmt.Errorf("read range %d-%d: %w", off, off+length-1, err)
	}
	return data, nil
}

func (s *Source) fetchMetadata() (int64, string, string, error) {
	size := int64(-1)
	etag := ""
	lastModified := ""

	if resp, err := s.doHead(); err == nil {
		if resp.StatusCode == nethttp.StatusOK {
			size = resp.ContentLength
			etag = resp.Header.Get("ETag")
			lastModified = resp.Header.Get("Last-Modified")
		}
		_ = resp.Body.Close() //nolint:errcheck // HEAD has no body
	}

	rangeSize, rangeETag, rangeLastModified, err := s.rangeProbe()
	if err != nil {
		return 0, "", "", err
	}
	if size > 0 && size != rangeSize {
		return 0, "", "", fmt.Errorf("content size mismatch: head=%d range=%d", size, rangeSize)
	}
	if etag == "" {
		etag = rangeETag
	}
	if lastModified == "" {
		lastModified = rangeLastModified
	}
	return rangeSize, etag, lastModified, nil
}

func (s *Source) rangeProbe() (int64, string, string, error) {
	req, err := s.newRequest(nethttp.MethodGet)
	if err != nil {
		return 0, "", "", err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", "", err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
		_ = resp.Body.Close()                 //nolint:errcheck // body fully read
	}()

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		// ok
	case nethttp.StatusRequestedRangeNotSatisfiable:
		// Empty content; the server reports the size in Content-Range.
	case nethttp.StatusOK:
		return 0, "", "", ErrRangeUnsupported
	default:
		return 0, "", "", fmt.Errorf("range request failed: %s", resp.Status)
	}

	crange := resp.Header.Get("Content-Range")
	if crange == "" {
		return 0, "", "", errors.New("range response missing Content-Range")
	}
	size, err := parseContentRange(crange)
	if err != nil {
		return 0, "", "", err
	}

	return size, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
}

func (s *Source) doHead() (*nethttp.Response, error) {
	req, err := s.newRequest(nethttp.MethodHead)
	if err != nil {
		return nil, err
	}
	return s.client.Do(req)
}

func (s *Source) newRequest(method string) (*nethttp.Request, error) {
	req, err := nethttp.NewRequestWithContext(s.ctx, method, s.url, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	if method == nethttp.MethodGet {
		if s.etag != "" && req.Header.Get("If-Match") == "" {
			req.Header.Set("If-Match", s.etag)
		}
		if s.lastModified != "" && req.Header.Get("If-Unmodified-Since") == "" {
			req.Header.Set("If-Unmodified-Since", s.lastModified)
		}
	}
	return req, nil
}

// parseContentRange returns the complete length from a Content-Range
// header such as "bytes 0-0/1234" or "bytes */1234".
func parseContentRange(value string) (int64, error) {
	value = strings.TrimSpace(value)
	rest, ok := strings.CutPrefix(value, "bytes ")
	if !ok {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}

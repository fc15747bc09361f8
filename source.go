package qtfaststart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// A Source serves byte ranges of a movie that is not held in memory.
//
// Callers only request ranges inside [0, Size).
type Source interface {
	// Size returns the length of the movie.
	Size(ctx context.Context) (uint64, error)
	// ReadRange returns exactly size bytes starting at offset.
	ReadRange(ctx context.Context, offset, size uint64) ([]byte, error)
	// OpenRange streams size bytes starting at offset.
	OpenRange(ctx context.Context, offset, size uint64) (io.ReadCloser, error)
}

// ReaderAtSource serves ranges from an io.ReaderAt such as an *os.File.
type ReaderAtSource struct {
	r    io.ReaderAt
	size int64
}

// NewReaderAtSource returns a Source reading the first size bytes of r.
func NewReaderAtSource(r io.ReaderAt, size int64) *ReaderAtSource {
	return &ReaderAtSource{r: r, size: size}
}

func (s *ReaderAtSource) Size(context.Context) (uint64, error) {
	return uint64(s.size), nil
}

func (s *ReaderAtSource) ReadRange(ctx context.Context, offset, size uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := s.r.ReadAt(buf, int64(offset))
	if n == len(buf) {
		// ReadAt may report io.EOF alongside a full read at the end
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %d bytes at %d: got %d: %w", size, offset, n, err)
}

func (s *ReaderAtSource) OpenRange(ctx context.Context, offset, size uint64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(io.NewSectionReader(s.r, int64(offset), int64(size))), nil
}

// HTTPSource serves ranges of a remote movie with HTTP range requests.
type HTTPSource struct {
	Client *http.Client // nil means http.DefaultClient
	URL    string
}

func (s *HTTPSource) client() *http.Client {
	if s.Client == nil {
		return http.DefaultClient
	}
	return s.Client
}

func (s *HTTPSource) Size(ctx context.Context) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.URL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HEAD %s: unexpected status %s", s.URL, resp.Status)
	}
	size, err := strconv.ParseUint(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("HEAD %s: invalid Content-Length: %w", s.URL, err)
	}
	return size, nil
}

func (s *HTTPSource) ReadRange(ctx context.Context, offset, size uint64) ([]byte, error) {
	body, err := s.OpenRange(ctx, offset, size)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	buf := make([]byte, size)
	if _, err = io.ReadFull(body, buf); err != nil {
		return nil, fmt.Errorf("GET %s bytes %d-%d: %w", s.URL, offset, offset+size-1, err)
	}
	return buf, nil
}

func (s *HTTPSource) OpenRange(ctx context.Context, offset, size uint64) (io.ReadCloser, error) {
	if size == 0 {
		return http.NoBody, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+size-1))
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s bytes %d-%d: unexpected status %s", s.URL, offset, offset+size-1, resp.Status)
	}
	return resp.Body, nil
}

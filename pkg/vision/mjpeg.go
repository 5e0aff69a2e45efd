package vision

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/vzenlabs/vzen/internal/httpc"
)

// maxMJPEGFrame caps a single JPEG segment. Anything larger means the
// stream lost its markers.
const maxMJPEGFrame = 8 << 20

// streamClient keeps the shared transport timeouts but no overall deadline.
// A multipart stream stays open for the life of the source.
var streamClient = httpc.NewClient(0)

// MJPEGSource reads frames from an HTTP MJPEG stream, the format most IP
// cameras expose as multipart/x-mixed-replace. Frames are recovered by
// scanning for the JPEG start and end of image markers, which also copes
// with servers that are sloppy about part headers.
type MJPEGSource struct {
	url    string
	cancel context.CancelFunc
	resp   *http.Response
	br     *bufio.Reader

	mu     sync.Mutex
	seq    uint64
	closed bool
}

// OpenMJPEG connects to the stream at url.
func OpenMJPEG(url string) (*MJPEGSource, error) {
	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("vision: mjpeg request: %w", err)
	}

	resp, err := streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("vision: mjpeg connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("vision: mjpeg connect: unexpected status %s", resp.Status)
	}

	return &MJPEGSource{
		url:    url,
		cancel: cancel,
		resp:   resp,
		br:     bufio.NewReaderSize(resp.Body, 64<<10),
	}, nil
}

// Next reads the next JPEG segment from the stream and decodes it.
func (s *MJPEGSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrUnavailable
	}

	for {
		data, err := s.readSegment()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrExhausted
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			// Corrupt segment mid stream. The next marker pair resyncs us,
			// and the blocking read above keeps this from spinning.
			continue
		}

		s.seq++
		b := img.Bounds()
		return &Frame{
			Image:     img,
			Width:     b.Dx(),
			Height:    b.Dy(),
			Seq:       s.seq,
			Timestamp: time.Now(),
		}, nil
	}
}

// readSegment scans to the next SOI marker and returns everything through
// the matching EOI marker.
func (s *MJPEGSource) readSegment() ([]byte, error) {
	for {
		b, err := s.br.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != 0xff {
			continue
		}
		nb, err := s.br.ReadByte()
		if err != nil {
			return nil, err
		}
		if nb == 0xd8 {
			break
		}
		if nb == 0xff {
			// Could be the first byte of the marker we want.
			_ = s.br.UnreadByte()
		}
	}

	buf := make([]byte, 0, 64<<10)
	buf = append(buf, 0xff, 0xd8)
	prev := byte(0)
	for {
		b, err := s.br.ReadByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
		if prev == 0xff && b == 0xd9 {
			return buf, nil
		}
		if len(buf) > maxMJPEGFrame {
			return nil, fmt.Errorf("segment exceeds %d bytes", maxMJPEGFrame)
		}
		prev = b
	}
}

// Close cancels the stream request and closes the response body.
func (s *MJPEGSource) Close() error {
	// Cancel first so a Next blocked on the network releases the lock.
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.resp.Body.Close()
}

// Verify MJPEGSource implements FrameSource at compile time.
var _ FrameSource = (*MJPEGSource)(nil)

// Package replay provides recorded and synthetic detection frame sources.
//
// Recordings are JSON lines: a LogHeader on the first line followed by one
// Frame per line.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/banshee-data/touchtrack/internal/blob"
)

// FileExtension is the extension for detection recordings.
const FileExtension = ".jsonl"

// FormatVersion is written into every LogHeader.
const FormatVersion = "1"

// maxLineBytes bounds a single frame line.
const maxLineBytes = 16 << 20

// ErrNoHeader is returned when a recording does not start with a header.
var ErrNoHeader = errors.New("replay: missing log header")

// LogHeader describes a recording.
type LogHeader struct {
	Version      string  `json:"version"`
	CreatedNs    int64   `json:"created_ns"`
	CameraWidth  float64 `json:"camera_width"`
	CameraHeight float64 `json:"camera_height"`
	FrameRate    float64 `json:"frame_rate"`
}

// Frame is the detection list of one captured frame.
type Frame struct {
	Seq            uint64           `json:"seq"`
	TimestampNanos int64            `json:"ts_ns"`
	Detections     []blob.Detection `json:"detections"`
}

// Time returns the frame timestamp. Frames without one report the zero
// time.
func (f Frame) Time() time.Time {
	if f.TimestampNanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, f.TimestampNanos).UTC()
}

// Writer appends frames to a recording.
type Writer struct {
	mu     sync.Mutex
	w      *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
	frames uint64
}

// NewWriter writes header to w and returns a Writer for subsequent frames.
func NewWriter(w io.Writer, header LogHeader) (*Writer, error) {
	if header.Version == "" {
		header.Version = FormatVersion
	}
	bw := bufio.NewWriter(w)
	wr := &Writer{w: bw, enc: json.NewEncoder(bw)}
	if err := wr.enc.Encode(header); err != nil {
		return nil, fmt.Errorf("failed to write log header: %w", err)
	}
	if c, ok := w.(io.Closer); ok {
		wr.closer = c
	}
	return wr, nil
}

// Create creates a recording file at path.
func Create(path string, header LogHeader) (*Writer, error) {
	if filepath.Ext(path) != FileExtension {
		return nil, fmt.Errorf("recording must have %s extension, got: %s", FileExtension, path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}
	w, err := NewWriter(f, header)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// WriteFrame appends one frame.
func (w *Writer) WriteFrame(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(f); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", f.Seq, err)
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written.
func (w *Writer) Frames() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close flushes buffered frames and closes the underlying file, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush recording: %w", err)
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Reader reads frames from a recording.
type Reader struct {
	sc     *bufio.Scanner
	header LogHeader
	line   int
	closer io.Closer
}

// NewReader reads the header from r.
func NewReader(r io.Reader) (*Reader, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	rd := &Reader{sc: sc}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("failed to read log header: %w", err)
		}
		return nil, ErrNoHeader
	}
	rd.line = 1
	if err := json.Unmarshal(sc.Bytes(), &rd.header); err != nil {
		return nil, fmt.Errorf("failed to parse log header: %w", err)
	}
	if rd.header.Version == "" {
		return nil, ErrNoHeader
	}
	return rd, nil
}

// Open opens a recording file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Header returns the recording header.
func (r *Reader) Header() LogHeader { return r.header }

// Next returns the next frame, or io.EOF after the last one. Blank lines
// are skipped.
func (r *Reader) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if !r.sc.Scan() {
			if err := r.sc.Err(); err != nil {
				return Frame{}, fmt.Errorf("failed to read frame: %w", err)
			}
			return Frame{}, io.EOF
		}
		r.line++
		if len(r.sc.Bytes()) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(r.sc.Bytes(), &f); err != nil {
			return Frame{}, fmt.Errorf("failed to parse frame on line %d: %w", r.line, err)
		}
		return f, nil
	}
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Package video reads and writes the container holding the QR frames. The
// ffmpeg-backed implementation lives behind small interfaces so the
// generation and scan pipelines can run against in-memory fakes.
package video

import (
	"fmt"
	"image"
	"image/draw"

	vidio "github.com/AlexEidt/Vidio"
)

// Writer appends frames to a video in call order.
type Writer interface {
	WriteFrame(img image.Image) error
	Close() error
}

// Reader yields the frames of a video in stored order. It cannot be rewound;
// reopen the file to scan again.
type Reader interface {
	Next() bool
	Frame() image.Image
	Err() error
	Close() error
}

// Opener opens a video for reading.
type Opener func(path string) (Reader, error)

// Creator creates a video for writing.
type Creator func(path string, opts WriterOptions) (Writer, error)

// WriterOptions describes the output stream.
type WriterOptions struct {
	Width   int
	Height  int
	FPS     float64
	Codec   string
	Quality float64
}

type vidioWriter struct {
	vw     *vidio.VideoWriter
	width  int
	height int
	frame  *image.RGBA
	closed bool
}

// Create opens path for writing through ffmpeg.
func Create(path string, opts WriterOptions) (Writer, error) {
	vw, err := vidio.NewVideoWriter(path, opts.Width, opts.Height, &vidio.Options{
		FPS:     opts.FPS,
		Codec:   opts.Codec,
		Quality: opts.Quality,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create video writer for %s: %w", path, err)
	}

	return &vidioWriter{
		vw:     vw,
		width:  opts.Width,
		height: opts.Height,
		frame:  image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
	}, nil
}

// WriteFrame implements Writer. Frames of another size are drawn at the
// top-left of a frame of the configured size.
func (w *vidioWriter) WriteFrame(img image.Image) error {
	if w.closed {
		return fmt.Errorf("video writer is closed")
	}

	draw.Draw(w.frame, w.frame.Bounds(), img, img.Bounds().Min, draw.Src)
	if err := w.vw.Write(w.frame.Pix); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close implements Writer.
func (w *vidioWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.vw.Close()
	return nil
}

type vidioReader struct {
	v      *vidio.Video
	frame  *image.RGBA
	closed bool
}

// Open opens path for reading through ffmpeg.
func Open(path string) (Reader, error) {
	v, err := vidio.NewVideo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %w", path, err)
	}

	return &vidioReader{v: v}, nil
}

// Next implements Reader.
func (r *vidioReader) Next() bool {
	if r.closed || !r.v.Read() {
		return false
	}

	width, height := r.v.Width(), r.v.Height()
	r.frame = &image.RGBA{
		Pix:    r.v.FrameBuffer(),
		Stride: 4 * width,
		Rect:   image.Rect(0, 0, width, height),
	}
	return true
}

// Frame implements Reader. The image is only valid until the next call to Next.
func (r *vidioReader) Frame() image.Image {
	return r.frame
}

// Err implements Reader. Vidio reports decode failures as end of stream.
func (r *vidioReader) Err() error {
	return nil
}

// Close implements Reader.
func (r *vidioReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.v.Close()
	return nil
}

package pipeline

import (
	"errors"
	"image"
	"os"
	"sync"

	"github.com/zsiec/framecheck/internal/video"
)

// byteRenderer writes the payload bytes into the first row of a grey image,
// zero-terminated. PNG is lossless, so the bytes survive the frame store.
type byteRenderer struct{}

func (byteRenderer) Render(data []byte) (image.Image, error) {
	img := image.NewGray(image.Rect(0, 0, 64, 1))
	copy(img.Pix, data)
	return img, nil
}

func frameOf(data string) image.Image {
	img, _ := byteRenderer{}.Render([]byte(data))
	return img
}

var errUnreadable = errors.New("checksum mismatch")

// byteScanner reverses byteRenderer. An empty row means no code; a row
// starting with 0xff is an unreadable code.
type byteScanner struct{}

func (byteScanner) Scan(img image.Image) ([][]byte, error) {
	b := img.Bounds()
	var data []byte
	for x := b.Min.X; x < b.Max.X; x++ {
		r, _, _, _ := img.At(x, b.Min.Y).RGBA()
		v := byte(r >> 8)
		if v == 0 {
			break
		}
		data = append(data, v)
	}

	switch {
	case len(data) == 0:
		return [][]byte{}, nil
	case data[0] == 0xff:
		return nil, errUnreadable
	default:
		return [][]byte{data}, nil
	}
}

// memVideos is an in-memory container store. Creating a video also touches
// the path on disk so callers can stat and remove it.
type memVideos struct {
	mu      sync.Mutex
	videos  map[string][]image.Image
	failAt  int
	created []string
}

func newMemVideos() *memVideos {
	return &memVideos{videos: make(map[string][]image.Image)}
}

func (m *memVideos) Create(path string, opts video.WriterOptions) (video.Writer, error) {
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.created = append(m.created, path)
	m.mu.Unlock()
	return &memWriter{m: m, path: path, failAt: m.failAt}, nil
}

func (m *memVideos) Open(path string) (video.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frames, ok := m.videos[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &memReader{frames: frames, pos: -1}, nil
}

// Put registers frames under path, creating the file on disk.
func (m *memVideos) Put(path string, frames ...image.Image) error {
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return err
	}
	m.mu.Lock()
	m.videos[path] = frames
	m.mu.Unlock()
	return nil
}

type memWriter struct {
	m      *memVideos
	path   string
	frames []image.Image
	failAt int
}

func (w *memWriter) WriteFrame(img image.Image) error {
	if w.failAt > 0 && len(w.frames) == w.failAt {
		return errors.New("encoder crashed")
	}
	w.frames = append(w.frames, img)
	return nil
}

func (w *memWriter) Close() error {
	w.m.mu.Lock()
	w.m.videos[w.path] = w.frames
	w.m.mu.Unlock()
	return nil
}

type memReader struct {
	frames []image.Image
	pos    int
	closed bool
}

func (r *memReader) Next() bool {
	if r.closed || r.pos+1 >= len(r.frames) {
		return false
	}
	r.pos++
	return true
}

func (r *memReader) Frame() image.Image {
	return r.frames[r.pos]
}

func (r *memReader) Err() error {
	return nil
}

func (r *memReader) Close() error {
	r.closed = true
	return nil
}

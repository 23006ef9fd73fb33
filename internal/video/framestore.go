package video

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FramePattern names the scratch file for a playback position.
const FramePattern = "frame_%06d.png"

// FrameStore is a scratch directory holding one PNG per frame, consumed by
// Assemble. Callers must Release it on every exit path.
type FrameStore struct {
	dir   string
	count int
	keep  bool
}

// NewFrameStore creates dir (and parents). keep leaves the files in place on Release.
func NewFrameStore(dir string, keep bool) (*FrameStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory: %w", err)
	}
	return &FrameStore{dir: dir, keep: keep}, nil
}

// Dir returns the scratch directory.
func (s *FrameStore) Dir() string {
	return s.dir
}

// Len returns the number of frames stored so far.
func (s *FrameStore) Len() int {
	return s.count
}

// Path returns the file path for playback position i.
func (s *FrameStore) Path(i int) string {
	return filepath.Join(s.dir, fmt.Sprintf(FramePattern, i))
}

// Put stores img as the next frame.
func (s *FrameStore) Put(img image.Image) (string, error) {
	path := s.Path(s.count)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create frame file: %w", err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to encode frame %d: %w", s.count, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close frame file: %w", err)
	}

	s.count++
	return path, nil
}

// Get loads the frame stored at playback position i.
func (s *FrameStore) Get(i int) (image.Image, error) {
	if i < 0 || i >= s.count {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", i, s.count)
	}

	f, err := os.Open(s.Path(i))
	if err != nil {
		return nil, fmt.Errorf("failed to open frame file: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %d: %w", i, err)
	}
	return img, nil
}

// Files lists the stored frame files in playback order.
func (s *FrameStore) Files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "frame_") && strings.HasSuffix(e.Name(), ".png") {
			files = append(files, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Release removes the scratch directory unless the store was created with keep.
func (s *FrameStore) Release() error {
	if s.keep {
		return nil
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove frame directory: %w", err)
	}
	return nil
}

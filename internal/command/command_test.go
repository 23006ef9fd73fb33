package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zsiec/framecheck/internal/errors"
	"github.com/zsiec/framecheck/internal/video"
)

// grayCodec stores payload bytes in the first row of a grey image.
type grayCodec struct{}

func (grayCodec) Render(data []byte) (image.Image, error) {
	img := image.NewGray(image.Rect(0, 0, 64, 1))
	copy(img.Pix, data)
	return img, nil
}

func (grayCodec) Scan(img image.Image) ([][]byte, error) {
	b := img.Bounds()
	var data []byte
	for x := b.Min.X; x < b.Max.X; x++ {
		r, _, _, _ := img.At(x, b.Min.Y).RGBA()
		if r == 0 {
			break
		}
		data = append(data, byte(r>>8))
	}
	if len(data) == 0 {
		return [][]byte{}, nil
	}
	return [][]byte{data}, nil
}

type memVideos struct {
	mu     sync.Mutex
	videos map[string][]image.Image
}

func (m *memVideos) Create(path string, _ video.WriterOptions) (video.Writer, error) {
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return nil, err
	}
	return &memWriter{m: m, path: path}, nil
}

func (m *memVideos) Open(path string) (video.Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	frames, ok := m.videos[path]
	if !ok {
		return nil, errors.New("unknown container")
	}
	return &memReader{frames: frames}, nil
}

func (m *memVideos) put(t *testing.T, path string, payloads ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, nil, 0644))
	frames := make([]image.Image, len(payloads))
	for i, p := range payloads {
		frames[i], _ = grayCodec{}.Render([]byte(p))
	}
	m.mu.Lock()
	m.videos[path] = frames
	m.mu.Unlock()
}

type memWriter struct {
	m      *memVideos
	path   string
	frames []image.Image
}

func (w *memWriter) WriteFrame(img image.Image) error {
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
	next   int
	cur    image.Image
}

func (r *memReader) Next() bool {
	if r.next >= len(r.frames) {
		return false
	}
	r.cur = r.frames[r.next]
	r.next++
	return true
}

func (r *memReader) Frame() image.Image { return r.cur }
func (r *memReader) Err() error         { return nil }
func (r *memReader) Close() error       { return nil }

type testEnv struct {
	dir    string
	config string
	videos *memVideos
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

type envOptions struct {
	redisAddr   string
	textfile    string
	ffmpegPath  string
	preflightOn bool
	strict      bool
}

func newEnv(t *testing.T, o envOptions) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := fmt.Sprintf(`logging:
  level: debug
  output: stderr
metrics:
  textfile: %q
generate:
  work_dir: %q
  default_output: %q
scan:
  strict: %t
report:
  redis:
    addr: %q
    key_prefix: "test:"
preflight:
  enabled: %t
  ffmpeg_path: %q
  ffprobe_path: %q
`, o.textfile, filepath.Join(dir, "frames"), filepath.Join(dir, "default.mp4"), o.strict,
		o.redisAddr, o.preflightOn, o.ffmpegPath, o.ffmpegPath)

	path := filepath.Join(dir, "framecheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))

	return &testEnv{
		dir:    dir,
		config: path,
		videos: &memVideos{videos: make(map[string][]image.Image)},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
}

func (e *testEnv) run(args ...string) int {
	e.stdout.Reset()
	e.stderr.Reset()

	app := New(Options{
		Stdout:   e.stdout,
		Stderr:   e.stderr,
		Create:   e.videos.Create,
		Open:     e.videos.Open,
		Renderer: grayCodec{},
		Scanner:  grayCodec{},
	})
	full := append([]string{"framecheck", "--config", e.config}, args...)
	return app.Run(context.Background(), full)
}

func (e *testEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

func TestGenerateThenScan(t *testing.T) {
	textfile := filepath.Join(t.TempDir(), "framecheck.prom")
	e := newEnv(t, envOptions{textfile: textfile})
	out := e.path("qr.mp4")

	code := e.run("generate", "--seed", "5", "10", out)
	require.Equal(t, 0, code, e.stdout.String())
	assert.Contains(t, e.stdout.String(), "Wrote 10 frames to "+out)
	assert.Contains(t, e.stdout.String(), "Seed: 5")

	code = e.run("scan", out)
	require.Equal(t, 0, code, e.stdout.String())
	assert.Equal(t, "Expected total number of frames: 10\n"+
		"Missing frames:\n"+
		"  None\n"+
		"Out-of-order frames:\n"+
		"  None\n", e.stdout.String())

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "framecheck_frames_scanned_total")
}

func TestGenerate_DefaultOutput(t *testing.T) {
	e := newEnv(t, envOptions{})

	require.Equal(t, 0, e.run("generate", "3"))
	_, err := os.Stat(e.path("default.mp4"))
	assert.NoError(t, err)
}

func TestGenerateSwapThenScan(t *testing.T) {
	e := newEnv(t, envOptions{})
	out := e.path("swapped.mp4")

	require.Equal(t, 0, e.run("generate", "--swap", "2:5", "10", out))
	assert.Contains(t, e.stdout.String(), "Switched frames 2 and 5")

	require.Equal(t, 0, e.run("scan", out))
	assert.Contains(t, e.stdout.String(), "Out-of-order frames:\n"+
		"  expected=2, actual=5\n"+
		"  expected=5, actual=2\n")
	assert.Contains(t, e.stdout.String(), "Missing frames:\n  None\n")
}

func TestGenerate_DeleteEverything(t *testing.T) {
	e := newEnv(t, envOptions{})
	out := e.path("gone.mp4")

	require.Equal(t, 0, e.run("generate", "--seed", "3", "--delete-random", "4", "4", out))
	assert.Contains(t, e.stdout.String(), "All 4 frames were deleted, no video written to "+out)
	assert.Contains(t, e.stdout.String(), "Deleted positions: 0, 1, 2, 3")
	assert.NotContains(t, e.stdout.String(), "Wrote ")

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestGenerate_KeepFramesListsFiles(t *testing.T) {
	e := newEnv(t, envOptions{})

	require.Equal(t, 0, e.run("generate", "--keep-frames", "3", e.path("kept.mp4")))
	assert.Contains(t, e.stdout.String(), "(3 files)")
}

func TestGenerate_InvalidArguments(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		message string
	}{
		{name: "missing count", args: []string{"generate"}, message: "missing required argument num_frames"},
		{name: "not a number", args: []string{"generate", "ten"}, message: `num_frames must be an integer, got "ten"`},
		{name: "zero", args: []string{"generate", "0"}, message: "num_frames must be a positive integer, got 0"},
		{name: "scramble too large", args: []string{"generate", "--scramble", "6", "5"}, message: "scramble must be within [0, 5], got 6"},
		{name: "delete too large", args: []string{"generate", "--delete-random", "9", "5"}, message: "delete_random must be within [0, 5], got 9"},
		{name: "bad swap", args: []string{"generate", "--swap", "2-5", "5"}, message: `swap "2-5" must be written as i:j`},
		{name: "flag after args", args: []string{"generate", "5", "out.mp4", "--scramble", "1"}, message: "flag --scramble must come before"},
		{name: "unknown flag", args: []string{"generate", "--frobnicate", "5"}, message: "frobnicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, envOptions{})

			code := e.run(tt.args...)
			assert.Equal(t, apperrors.ExitInvalidArgument, code)
			assert.True(t, strings.HasPrefix(e.stdout.String(), "Error: "), e.stdout.String())
			assert.Contains(t, e.stdout.String(), tt.message)

			_, err := os.Stat(e.path("default.mp4"))
			assert.True(t, os.IsNotExist(err))
			_, err = os.Stat(e.path("frames"))
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestScan_MissingSyncFrame(t *testing.T) {
	e := newEnv(t, envOptions{})
	in := e.path("nosync.mp4")
	e.videos.put(t, in, `{"frame_i": 1}`, `{"frame_i": 2}`)

	code := e.run("scan", in)
	assert.Equal(t, apperrors.ExitFailure, code)
	assert.Equal(t, "Error: first sync frame missing\n", e.stdout.String())
}

func TestScan_EmptyInput(t *testing.T) {
	e := newEnv(t, envOptions{})
	in := e.path("blank.mp4")
	e.videos.put(t, in, "", "")

	code := e.run("scan", in)
	assert.Equal(t, apperrors.ExitFailure, code)
	assert.Equal(t, "Error: no frames found in input video\n", e.stdout.String())
}

func TestScan_InputMustExist(t *testing.T) {
	e := newEnv(t, envOptions{})

	code := e.run("scan", e.path("nope.mp4"))
	assert.Equal(t, apperrors.ExitInvalidArgument, code)
	assert.Contains(t, e.stdout.String(), "does not exist")

	code = e.run("scan")
	assert.Equal(t, apperrors.ExitInvalidArgument, code)
}

func TestScan_Strict(t *testing.T) {
	e := newEnv(t, envOptions{})
	in := e.path("dup.mp4")
	e.videos.put(t, in, `{"total_frames": 3}`, `{"frame_i": 1}`, `{"frame_i": 1}`)

	require.Equal(t, 0, e.run("scan", in))
	assert.Contains(t, e.stdout.String(), "Anomalies:\n  duplicate frame 1 at position 2\n")

	code := e.run("scan", "--strict", in)
	assert.Equal(t, apperrors.ExitAnomaly, code)
	assert.Contains(t, e.stdout.String(), "Missing frames:\n  2\n")
	assert.Contains(t, e.stdout.String(), "Error: 1 anomalous frame record(s) in observed stream\n")
}

func TestScan_StrictFromConfig(t *testing.T) {
	e := newEnv(t, envOptions{strict: true})
	in := e.path("dup.mp4")
	e.videos.put(t, in, `{"total_frames": 2}`, `{"frame_i": 5}`)

	assert.Equal(t, apperrors.ExitAnomaly, e.run("scan", in))
}

func TestScan_JSON(t *testing.T) {
	e := newEnv(t, envOptions{})
	in := e.path("gap.mp4")
	e.videos.put(t, in, `{"total_frames": 4}`, `{"frame_i": 1}`, `{"frame_i": 3}`)

	require.Equal(t, 0, e.run("scan", "--format", "json", in))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(e.stdout.Bytes(), &got))
	assert.Equal(t, float64(4), got["expected_total_frames"])
	assert.Equal(t, []interface{}{float64(2)}, got["missing_frame_indices"])
	assert.Equal(t, in, got["input"])
	assert.Equal(t, float64(3), got["frames_scanned"])
}

func TestScan_BadFormat(t *testing.T) {
	e := newEnv(t, envOptions{})
	in := e.path("x.mp4")
	e.videos.put(t, in, `{"total_frames": 1}`)

	assert.Equal(t, apperrors.ExitInvalidArgument, e.run("scan", "--format", "xml", in))
}

func TestScan_PublishAndReport(t *testing.T) {
	mr := miniredis.RunT(t)
	e := newEnv(t, envOptions{redisAddr: mr.Addr()})
	in := e.path("pub.mp4")
	e.videos.put(t, in, `{"total_frames": 3}`, `{"frame_i": 2}`)

	require.Equal(t, 0, e.run("scan", in))

	ids, err := mr.List("test:reports")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.True(t, mr.Exists("test:report:"+ids[0]))

	require.Equal(t, 0, e.run("report"))
	assert.Contains(t, e.stdout.String(), "Missing frames:\n  1\n")
	assert.Contains(t, e.stdout.String(), "expected=1, actual=2")

	require.Equal(t, 0, e.run("report", "--format", "json", ids[0]))
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(e.stdout.Bytes(), &got))
	assert.Equal(t, ids[0], got["run_id"])

	assert.Equal(t, apperrors.ExitInvalidArgument, e.run("report", "unknown-run"))
}

func TestScan_PublishFailureKeepsVerdict(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	e := newEnv(t, envOptions{redisAddr: addr})
	in := e.path("x.mp4")
	e.videos.put(t, in, `{"total_frames": 1}`)

	assert.Equal(t, 0, e.run("scan", in))
	assert.Contains(t, e.stderr.String(), "Failed to publish report")
}

func TestReport_NotConfigured(t *testing.T) {
	e := newEnv(t, envOptions{})
	assert.Equal(t, apperrors.ExitInvalidArgument, e.run("report"))
}

func TestPreflight_MissingTools(t *testing.T) {
	e := newEnv(t, envOptions{ffmpegPath: "/nonexistent/ffmpeg"})

	code := e.run("preflight")
	assert.Equal(t, apperrors.ExitFailure, code)
	assert.Contains(t, e.stdout.String(), "ffmpeg   down")
	assert.Contains(t, e.stdout.String(), "ffprobe  down")
	assert.Contains(t, e.stdout.String(), "Overall: down")
	assert.Contains(t, e.stdout.String(), "Error: ffmpeg is not available")
}

func TestPreflight_BlocksGenerate(t *testing.T) {
	e := newEnv(t, envOptions{ffmpegPath: "/nonexistent/ffmpeg", preflightOn: true})

	code := e.run("generate", "3", e.path("out.mp4"))
	assert.Equal(t, apperrors.ExitFailure, code)
	assert.Contains(t, e.stdout.String(), "Error: ffmpeg is not available")
	_, err := os.Stat(e.path("out.mp4"))
	assert.True(t, os.IsNotExist(err))
}

func TestVersion(t *testing.T) {
	e := newEnv(t, envOptions{})

	require.Equal(t, 0, e.run("version"))
	assert.Contains(t, e.stdout.String(), "framecheck")

	require.Equal(t, 0, e.run("version", "--format", "json"))
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(e.stdout.Bytes(), &got))
	assert.Contains(t, got, "version")
}

func TestBadConfig(t *testing.T) {
	e := newEnv(t, envOptions{})
	require.NoError(t, os.WriteFile(e.config, []byte("video:\n  width: 3\n"), 0644))

	code := e.run("version")
	assert.Equal(t, apperrors.ExitInvalidArgument, code)
	assert.Contains(t, e.stdout.String(), "Error: ")
	assert.Contains(t, e.stdout.String(), "even")
}

func TestBadLogLevel(t *testing.T) {
	e := newEnv(t, envOptions{})

	app := New(Options{Stdout: e.stdout, Stderr: e.stderr})
	code := app.Run(context.Background(), []string{"framecheck", "--config", e.config, "--log-level", "loud", "version"})
	assert.Equal(t, apperrors.ExitInvalidArgument, code)
}

func TestServe_NotConfigured(t *testing.T) {
	e := newEnv(t, envOptions{})
	assert.Equal(t, apperrors.ExitInvalidArgument, e.run("serve"))
	assert.Contains(t, e.stdout.String(), "no report store configured")
}

func TestServe_StopsWithContext(t *testing.T) {
	mr := miniredis.RunT(t)
	e := newEnv(t, envOptions{redisAddr: mr.Addr()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	app := New(Options{Stdout: e.stdout, Stderr: e.stderr})
	code := app.Run(ctx, []string{"framecheck", "--config", e.config, "serve", "--addr", "127.0.0.1:0"})
	assert.Equal(t, 0, code)
	assert.Contains(t, e.stderr.String(), "Starting report server")
	assert.Contains(t, e.stderr.String(), "Report server shutdown complete")
}

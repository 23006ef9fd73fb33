package health

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ToolChecker verifies that one of the ffmpeg tools is installed and runs.
// Vidio shells out to both ffmpeg (encode and decode) and ffprobe (metadata),
// so the preflight registers one checker for each.
type ToolChecker struct {
	tool       string
	binaryPath string
	timeout    time.Duration
	encoders   []string
}

// NewFFmpegChecker checks ffmpeg and, when given, that each encoder is
// compiled in. An empty binaryPath is resolved from PATH.
func NewFFmpegChecker(binaryPath string, timeout time.Duration, encoders ...string) *ToolChecker {
	return newToolChecker("ffmpeg", binaryPath, timeout, encoders)
}

// NewFFprobeChecker checks ffprobe. An empty binaryPath is resolved from PATH.
func NewFFprobeChecker(binaryPath string, timeout time.Duration) *ToolChecker {
	return newToolChecker("ffprobe", binaryPath, timeout, nil)
}

func newToolChecker(tool, binaryPath string, timeout time.Duration, encoders []string) *ToolChecker {
	if binaryPath == "" {
		if path, err := exec.LookPath(tool); err == nil {
			binaryPath = path
		}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var wanted []string
	for _, e := range encoders {
		if e = strings.TrimSpace(e); e != "" {
			wanted = append(wanted, e)
		}
	}

	return &ToolChecker{
		tool:       tool,
		binaryPath: binaryPath,
		timeout:    timeout,
		encoders:   wanted,
	}
}

// Name returns the name of the checker.
func (t *ToolChecker) Name() string {
	return t.tool
}

// BinaryPath returns the resolved binary, empty when it was not found.
func (t *ToolChecker) BinaryPath() string {
	return t.binaryPath
}

// Check runs the tool and, for ffmpeg, inspects its encoder list.
func (t *ToolChecker) Check(ctx context.Context) error {
	if err := t.checkBinary(ctx); err != nil {
		return fmt.Errorf("%s binary check failed: %w", t.tool, err)
	}

	if len(t.encoders) > 0 {
		if err := t.checkEncoders(ctx); err != nil {
			return fmt.Errorf("encoder availability check failed: %w", err)
		}
	}

	return nil
}

func (t *ToolChecker) checkBinary(ctx context.Context) error {
	if t.binaryPath == "" {
		return fmt.Errorf("%s binary not found in PATH", t.tool)
	}

	if !filepath.IsAbs(t.binaryPath) {
		if _, err := exec.LookPath(t.binaryPath); err != nil {
			return fmt.Errorf("%s binary not executable: %w", t.tool, err)
		}
	}

	output, err := t.run(ctx, "-version")
	if err != nil {
		return fmt.Errorf("%s version check failed: %w", t.tool, err)
	}

	if !strings.Contains(output, t.tool+" version") {
		return fmt.Errorf("unexpected %s version output", t.tool)
	}
	return nil
}

func (t *ToolChecker) checkEncoders(ctx context.Context) error {
	output, err := t.run(ctx, "-hide_banner", "-encoders")
	if err != nil {
		return fmt.Errorf("failed to get encoder list: %w", err)
	}

	available := parseEncoders(output)
	var missing []string
	for _, e := range t.encoders {
		if !available[e] {
			missing = append(missing, e)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing encoders: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Version returns the first line of the tool's -version output.
func (t *ToolChecker) Version(ctx context.Context) (string, error) {
	output, err := t.run(ctx, "-version")
	if err != nil {
		return "", err
	}

	line, _, _ := strings.Cut(output, "\n")
	return strings.TrimSpace(line), nil
}

func (t *ToolChecker) run(ctx context.Context, args ...string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	output, err := exec.CommandContext(cmdCtx, t.binaryPath, args...).Output()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// parseEncoders reads the table printed by `ffmpeg -encoders`:
//
//	V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
//
// The listing starts after the " ------" separator line.
func parseEncoders(output string) map[string]bool {
	encoders := make(map[string]bool)

	inTable := false
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inTable {
			if strings.HasPrefix(trimmed, "------") {
				inTable = true
			}
			continue
		}

		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			continue
		}
		encoders[fields[1]] = true
	}

	return encoders
}

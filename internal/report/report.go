// Package report formats reconciliation results for people and machines and
// publishes them to an optional store.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/zsiec/framecheck/internal/reconcile"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json or yaml in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text, json or yaml)", s)
	}
}

// Summary is a reconciliation report together with the scan that produced it.
type Summary struct {
	RunID         string    `json:"run_id" yaml:"run_id"`
	Input         string    `json:"input" yaml:"input"`
	ScannedAt     time.Time `json:"scanned_at" yaml:"scanned_at"`
	FramesScanned int       `json:"frames_scanned" yaml:"frames_scanned"`
	DecodeErrors  int       `json:"decode_errors" yaml:"decode_errors"`

	reconcile.Report `yaml:",inline"`
}

// Write renders s to w in the given format.
func Write(w io.Writer, s *Summary, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		return writeText(w, &s.Report)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// writeText prints the human-readable report. Headings are bold when w is a
// terminal and plain otherwise.
func writeText(w io.Writer, r *reconcile.Report) error {
	heading := lipgloss.NewRenderer(w).NewStyle().Bold(true)

	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line(heading.Render("Expected total number of frames:") + " " + strconv.Itoa(r.ExpectedTotalFrames))

	line(heading.Render("Missing frames:"))
	if len(r.Missing) == 0 {
		line("  None")
	} else {
		parts := make([]string, len(r.Missing))
		for i, idx := range r.Missing {
			parts[i] = strconv.Itoa(idx)
		}
		line("  " + strings.Join(parts, ", "))
	}

	line(heading.Render("Out-of-order frames:"))
	if len(r.OutOfOrder) == 0 {
		line("  None")
	}
	for _, o := range r.OutOfOrder {
		line(fmt.Sprintf("  expected=%d, actual=%d", o.Expected, o.Actual))
	}

	if len(r.Anomalies) > 0 {
		line(heading.Render("Anomalies:"))
		for _, a := range r.Anomalies {
			if a.Kind == reconcile.AnomalyUnexpectedSync || a.Kind == reconcile.AnomalyUnknownPayload {
				line(fmt.Sprintf("  %s at position %d", a.Kind, a.Position))
				continue
			}
			line(fmt.Sprintf("  %s frame %d at position %d", a.Kind, a.FrameIndex, a.Position))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

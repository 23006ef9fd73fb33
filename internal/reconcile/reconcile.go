// Package reconcile compares the payloads recovered from a video, in playback
// order, against what the sync record says the video should contain.
package reconcile

import (
	"sort"

	apperrors "github.com/zsiec/framecheck/internal/errors"
	"github.com/zsiec/framecheck/internal/payload"
)

// OutOfOrder is a frame record seen at a playback position other than the one
// it declares. Expected is the playback slot, Actual the declared index.
type OutOfOrder struct {
	Expected int `json:"expected" yaml:"expected"`
	Actual   int `json:"actual" yaml:"actual"`
}

// AnomalyKind classifies a frame record that cannot be matched to a missing index.
type AnomalyKind string

const (
	// AnomalyDuplicate is an in-range index that was already found.
	AnomalyDuplicate AnomalyKind = "duplicate"
	// AnomalyOutOfRange is an index at or beyond the declared total.
	AnomalyOutOfRange AnomalyKind = "out_of_range"
	// AnomalyUnexpectedSync is a sync record after position 0.
	AnomalyUnexpectedSync AnomalyKind = "unexpected_sync"
	// AnomalyUnknownPayload is an entry that is neither a sync nor a frame record.
	AnomalyUnknownPayload AnomalyKind = "unknown_payload"
)

// DefaultMaxTotalFrames bounds the frame count a sync record may declare.
// At 60 fps it is well over four hours of video.
const DefaultMaxTotalFrames = 1_000_000

// Options tunes a reconciliation.
type Options struct {
	// MaxTotalFrames rejects sync records declaring more frames. 0 means
	// DefaultMaxTotalFrames.
	MaxTotalFrames int
}

// Anomaly records a frame record that was flagged rather than counted as found.
type Anomaly struct {
	Kind       AnomalyKind `json:"kind" yaml:"kind"`
	Position   int         `json:"position" yaml:"position"`
	FrameIndex int         `json:"frame_index,omitempty" yaml:"frame_index,omitempty"`
}

// Report is the outcome of one reconciliation.
type Report struct {
	ExpectedTotalFrames int          `json:"expected_total_frames" yaml:"expected_total_frames"`
	ObservedFrames      int          `json:"observed_frames" yaml:"observed_frames"`
	Missing             []int        `json:"missing_frame_indices" yaml:"missing_frame_indices"`
	OutOfOrder          []OutOfOrder `json:"out_of_order_entries" yaml:"out_of_order_entries"`
	Anomalies           []Anomaly    `json:"anomalies,omitempty" yaml:"anomalies,omitempty"`
}

// Clean reports whether nothing is missing, reordered or anomalous.
func (r *Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.OutOfOrder) == 0 && len(r.Anomalies) == 0
}

// Err returns an AnomalousDuplicate error when the report carries anomalies.
// Missing and reordered frames are the measured condition and never an error.
func (r *Report) Err() error {
	if len(r.Anomalies) == 0 {
		return nil
	}
	details := make(map[string]interface{}, len(r.Anomalies))
	for _, a := range r.Anomalies {
		details[string(a.Kind)] = countKind(r.Anomalies, a.Kind)
	}
	return apperrors.NewAnomalousDuplicateError(len(r.Anomalies)).WithDetails(details)
}

func countKind(anomalies []Anomaly, kind AnomalyKind) int {
	n := 0
	for _, a := range anomalies {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Reconcile analyzes observed, which must be in playback order. observed is
// not modified.
func Reconcile(observed []payload.Payload) (*Report, error) {
	return ReconcileWith(observed, Options{})
}

// ReconcileWith is Reconcile with explicit limits. The declared total comes
// from a scanned code, so it is checked before any per-frame state is built.
func ReconcileWith(observed []payload.Payload, opts Options) (*Report, error) {
	limit := opts.MaxTotalFrames
	if limit <= 0 {
		limit = DefaultMaxTotalFrames
	}

	if len(observed) == 0 {
		return nil, apperrors.NewEmptyInputError()
	}

	sync, ok := asSync(observed[0])
	if !ok {
		return nil, apperrors.NewMissingSyncFrameError("first sync frame missing").
			WithDetails(map[string]interface{}{"first_payload": describe(observed[0])})
	}

	total := sync.TotalFrames
	if total > limit {
		return nil, apperrors.NewInvalidArgumentError(
			"sync record declares %d frames, above the limit of %d", total, limit).
			WithDetails(map[string]interface{}{"observed": len(observed)})
	}
	missing := make(map[int]struct{}, total)
	for i := 1; i < total; i++ {
		missing[i] = struct{}{}
	}

	report := &Report{
		ExpectedTotalFrames: total,
		ObservedFrames:      len(observed),
		Missing:             []int{},
		OutOfOrder:          []OutOfOrder{},
	}

	for i, p := range observed[1:] {
		position := i + 1

		index, ok := asFrameIndex(p)
		if !ok {
			kind := AnomalyUnknownPayload
			if _, isSync := asSync(p); isSync {
				kind = AnomalyUnexpectedSync
			}
			report.Anomalies = append(report.Anomalies, Anomaly{
				Kind:     kind,
				Position: position,
			})
			continue
		}

		if _, found := missing[index]; found {
			delete(missing, index)
		} else {
			kind := AnomalyDuplicate
			if index >= total {
				kind = AnomalyOutOfRange
			}
			report.Anomalies = append(report.Anomalies, Anomaly{
				Kind:       kind,
				Position:   position,
				FrameIndex: index,
			})
		}

		if index != position {
			report.OutOfOrder = append(report.OutOfOrder, OutOfOrder{
				Expected: position,
				Actual:   index,
			})
		}
	}

	for index := range missing {
		report.Missing = append(report.Missing, index)
	}
	sort.Ints(report.Missing)

	return report, nil
}

func asSync(p payload.Payload) (payload.SyncRecord, bool) {
	switch v := p.(type) {
	case payload.SyncRecord:
		return v, true
	case *payload.SyncRecord:
		if v != nil {
			return *v, true
		}
	}
	return payload.SyncRecord{}, false
}

func asFrameIndex(p payload.Payload) (int, bool) {
	switch v := p.(type) {
	case payload.FrameRecord:
		return v.Index, true
	case *payload.FrameRecord:
		if v != nil {
			return v.Index, true
		}
	}
	return 0, false
}

func describe(p payload.Payload) string {
	switch v := p.(type) {
	case nil:
		return "none"
	case *payload.SyncRecord:
		if v == nil {
			return "none"
		}
	case *payload.FrameRecord:
		if v == nil {
			return "none"
		}
	}
	return p.String()
}

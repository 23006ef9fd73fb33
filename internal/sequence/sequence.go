// Package sequence builds the ordered list of payloads that becomes a test
// video, and applies the deliberate damage (swaps, deletions) used to check
// that a pipeline's defects are detected.
package sequence

import (
	"sort"

	apperrors "github.com/zsiec/framecheck/internal/errors"
	"github.com/zsiec/framecheck/internal/logger"
	"github.com/zsiec/framecheck/internal/payload"
)

// Sequence is an ordered list of payloads in playback order.
type Sequence []payload.Payload

// Swap is a transposition of two playback positions.
type Swap struct {
	A int `json:"a"`
	B int `json:"b"`
}

// Generate returns the undamaged sequence of totalFrames payloads: a sync
// record followed by frame records 1..totalFrames-1.
func Generate(totalFrames int) (Sequence, error) {
	if totalFrames <= 0 {
		return nil, apperrors.NewInvalidArgumentError("total frames must be positive, got %d", totalFrames)
	}

	seq := make(Sequence, totalFrames)
	seq[0] = payload.SyncRecord{TotalFrames: totalFrames}
	for i := 1; i < totalFrames; i++ {
		seq[i] = payload.FrameRecord{Index: i}
	}
	return seq, nil
}

// Clone returns a copy of s that shares no backing array with it.
func (s Sequence) Clone() Sequence {
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

// Encoded returns the wire bytes of every payload in order.
func (s Sequence) Encoded() [][]byte {
	out := make([][]byte, len(s))
	for i, p := range s {
		out[i] = payload.Encode(p)
	}
	return out
}

// Shuffle performs swapCount random transpositions within positions
// 1..len(seq)-1. Position 0 is never touched. The input is not modified.
func Shuffle(seq Sequence, swapCount int, rng Source, log logger.Logger) (Sequence, []Swap, error) {
	if swapCount < 0 {
		return nil, nil, apperrors.NewInvalidArgumentError("swap count cannot be negative, got %d", swapCount)
	}

	out := seq.Clone()
	if swapCount == 0 {
		return out, nil, nil
	}

	movable := len(seq) - 1
	if movable < 2 {
		return nil, nil, apperrors.NewInvalidArgumentError(
			"shuffling needs at least two non-sync frames, sequence has %d", movable)
	}

	swaps := make([]Swap, 0, swapCount)
	for n := 0; n < swapCount; n++ {
		a := 1 + rng.IntN(movable)
		b := 1 + rng.IntN(movable-1)
		if b >= a {
			b++
		}

		out[a], out[b] = out[b], out[a]
		swaps = append(swaps, Swap{A: a, B: b})
		log.WithFields(logger.Fields{"swap": n + 1, "a": a, "b": b}).Infof("Switching frames %d and %d", a, b)
	}

	return out, swaps, nil
}

// ApplySwaps replays a fixed list of transpositions. Swaps touching position 0
// or falling outside the sequence are rejected.
func ApplySwaps(seq Sequence, swaps []Swap) (Sequence, error) {
	out := seq.Clone()
	for _, s := range swaps {
		if s.A < 1 || s.B < 1 || s.A >= len(out) || s.B >= len(out) {
			return nil, apperrors.NewInvalidArgumentError(
				"swap %d:%d out of range, positions must be within 1..%d", s.A, s.B, len(out)-1)
		}
		if s.A == s.B {
			return nil, apperrors.NewInvalidArgumentError("swap %d:%d must name two distinct positions", s.A, s.B)
		}
		out[s.A], out[s.B] = out[s.B], out[s.A]
	}
	return out, nil
}

// DeleteRandom removes deleteCount distinct positions chosen uniformly from
// the whole sequence, sync record included. Survivors keep their relative
// order. The removed positions are returned in ascending order.
func DeleteRandom(seq Sequence, deleteCount int, rng Source, log logger.Logger) (Sequence, []int, error) {
	if deleteCount < 0 || deleteCount > len(seq) {
		return nil, nil, apperrors.NewInvalidArgumentError(
			"delete count must be within [0, %d], got %d", len(seq), deleteCount)
	}

	if deleteCount == 0 {
		return seq.Clone(), nil, nil
	}

	deleted := rng.Perm(len(seq))[:deleteCount]
	sort.Ints(deleted)

	drop := make(map[int]struct{}, deleteCount)
	for _, pos := range deleted {
		drop[pos] = struct{}{}
	}

	out := make(Sequence, 0, len(seq)-deleteCount)
	for i, p := range seq {
		if _, ok := drop[i]; ok {
			continue
		}
		out = append(out, p)
	}

	log.WithField("positions", deleted).Infof("Deleted %d frame(s)", deleteCount)
	return out, deleted, nil
}

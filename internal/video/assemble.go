package video

import (
	"context"
	"fmt"
)

// Assemble writes every frame held by store to w, in playback order. It does
// not close w.
func Assemble(ctx context.Context, store *FrameStore, w Writer) (int, error) {
	for i := 0; i < store.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		img, err := store.Get(i)
		if err != nil {
			return i, err
		}
		if err := w.WriteFrame(img); err != nil {
			return i, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return store.Len(), nil
}

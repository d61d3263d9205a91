package protocol

import (
	"errors"
	"fmt"
	"testing"

	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/grid"
)

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrBadRequest,
		ErrUnknownShape,
		ErrBadOrientation,
		ErrOutOfBounds,
		ErrOverlap,
		ErrNotFound,
		ErrNoPlacement,
		ErrInconsistentLoad,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("place: %w", grid.ErrOverlap), ErrOverlap},
		{fmt.Errorf("place: %w", grid.ErrOutOfBounds), ErrOutOfBounds},
		{fmt.Errorf("remove: %w", grid.ErrNotFound), ErrNotFound},
		{fmt.Errorf("%w: Q", board.ErrUnknownShape), ErrUnknownShape},
		{board.ErrBadOrientation, ErrBadOrientation},
		{board.ErrNoPlacement, ErrNoPlacement},
		// Load failures wrap the grid reason; the load code wins.
		{fmt.Errorf("%w: %w", board.ErrInconsistentLoad, grid.ErrOverlap), ErrInconsistentLoad},
		{errors.New("boom"), ErrInternal},
	}
	for _, tc := range cases {
		got := CodeFor(tc.err)
		if got != tc.want {
			t.Fatalf("CodeFor(%v)=%q want %q", tc.err, got, tc.want)
		}
		if !IsKnownCode(got) {
			t.Fatalf("CodeFor(%v) returned unknown code %q", tc.err, got)
		}
	}
}

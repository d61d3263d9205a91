package protocol

import (
	"errors"

	"brickcube.ai/internal/sim/board"
	"brickcube.ai/internal/sim/catalogs"
	"brickcube.ai/internal/sim/grid"
)

const (
	// Protocol/transport validation.
	ErrBadRequest = "E_BAD_REQUEST"

	// Board rules.
	ErrUnknownShape     = "E_UNKNOWN_SHAPE"
	ErrBadOrientation   = "E_BAD_ORIENTATION"
	ErrOutOfBounds      = "E_OUT_OF_BOUNDS"
	ErrOverlap          = "E_OVERLAP"
	ErrNotFound         = "E_NOT_FOUND"
	ErrNoPlacement      = "E_NO_PLACEMENT"
	ErrInconsistentLoad = "E_INCONSISTENT_LOAD"
	ErrInternal         = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:       {},
	ErrUnknownShape:     {},
	ErrBadOrientation:   {},
	ErrOutOfBounds:      {},
	ErrOverlap:          {},
	ErrNotFound:         {},
	ErrNoPlacement:      {},
	ErrInconsistentLoad: {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps a board error to its wire code. nil maps to "".
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, board.ErrInconsistentLoad):
		return ErrInconsistentLoad
	case errors.Is(err, board.ErrUnknownShape):
		return ErrUnknownShape
	case errors.Is(err, board.ErrBadOrientation):
		return ErrBadOrientation
	case errors.Is(err, board.ErrNoPlacement):
		return ErrNoPlacement
	case errors.Is(err, grid.ErrOutOfBounds):
		return ErrOutOfBounds
	case errors.Is(err, grid.ErrOverlap):
		return ErrOverlap
	case errors.Is(err, grid.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, catalogs.ErrInvalidShape):
		return ErrBadRequest
	default:
		return ErrInternal
	}
}

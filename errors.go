package elevationmap

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for malformed keys, unknown precisions
	// and other caller bugs.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyTile is returned when sample data is requested from a tile that
	// has not been populated.
	ErrEmptyTile = errors.New("empty tile")

	// ErrNotFound is returned when no tile exists anywhere along the chain of
	// ancestors of the requested tile.
	ErrNotFound = errors.New("tile not found")

	// ErrNoData is returned by elevation queries when no tile covers the
	// requested location.
	ErrNoData = errors.New("no elevation data available at this location")

	// ErrFormat is returned when a tile file cannot be decoded.
	ErrFormat = errors.New("format error")

	// ErrPrecondition is returned by Insert when its preconditions do not
	// hold.
	ErrPrecondition = errors.New("precondition failed")
)

// A TileError records an error and the tile that caused it.
type TileError struct {
	Op  string
	Key TileKey
	Err error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *TileError) Unwrap() error {
	return e.Err
}

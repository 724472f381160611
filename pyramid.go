package elevationmap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Insert adds target to the repository and rebuilds every tile on the path
// from its ancestor at ancestorDepth down to target, so that each level along
// the path shows a resampled version of target's data. A tile at
// ancestorDepth, or shallower, must already exist.
//
// Tiles that already exist along the path keep their data outside target's
// footprint. Tiles that do not exist yet are first filled from their parent.
// Every level is written before descending to the next, so if a write fails
// the repository is left consistent level by level and calling Insert again
// with the same arguments completes the construction. Inserting the same data
// twice produces identical files.
//
// Concurrent calls whose paths share tiles are serialized on those tiles.
func (s *TileStore) Insert(target *Tile, ancestorDepth int) error {
	key := target.Key()
	switch {
	case s.zero || s.dir == "":
		return &TileError{Op: "insert", Key: key, Err: errors.ErrUnsupported}
	case !key.Valid():
		return &TileError{Op: "insert", Key: key, Err: ErrInvalidArgument}
	case target.Empty():
		return &TileError{Op: "insert", Key: key, Err: ErrEmptyTile}
	case ancestorDepth < 0 || key.Depth < ancestorDepth:
		return &TileError{Op: "insert", Key: key, Err: fmt.Errorf("%w: ancestor depth %d", ErrPrecondition, ancestorDepth)}
	}

	current, err := s.FetchKey(key.Ancestor(ancestorDepth))
	if err != nil {
		return &TileError{Op: "insert", Key: key, Err: fmt.Errorf("%w: no ancestor: %w", ErrPrecondition, err)}
	}

	unlock := s.lockPath(current.Key(), key)
	defer unlock()

	// Another insert may have replaced the ancestor while we were waiting.
	if current, err = s.FetchKey(current.Key()); err != nil {
		return &TileError{Op: "insert", Key: key, Err: fmt.Errorf("%w: no ancestor: %w", ErrPrecondition, err)}
	}

	logger := s.logger.WithFields(logrus.Fields{
		"target":   key.String(),
		"ancestor": current.Key().String(),
	})
	logger.Debug("inserting tile")

	if current.Key() == key {
		// The target already exists: overwrite it in place.
		next := current.Clone()
		if err := next.Transplant(target); err != nil {
			return &TileError{Op: "insert", Key: key, Err: err}
		}
		if err := s.storeTile(next); err != nil {
			return &TileError{Op: "insert", Key: key, Err: err}
		}
	}

	for current.Key() != key {
		nextKey, relation := ChildContaining(current, target)
		if relation != Child {
			return &TileError{Op: "insert", Key: key, Err: fmt.Errorf("%w: %s does not contain target", ErrPrecondition, current.Key())}
		}

		var next *Tile
		switch existing, err := s.FetchKey(nextKey); {
		case err == nil && existing.Key() == nextKey:
			next = existing.Clone()
			logger.WithField("tile", nextKey.String()).Debug("updating existing tile")
		case err != nil && !errors.Is(err, ErrNotFound):
			return &TileError{Op: "insert", Key: nextKey, Err: err}
		default:
			next = NewTile(nextKey, s.resolution)
			if err := next.Transplant(current); err != nil {
				return &TileError{Op: "insert", Key: nextKey, Err: err}
			}
			logger.WithField("tile", nextKey.String()).Debug("creating tile")
		}

		if err := next.Transplant(target); err != nil {
			return &TileError{Op: "insert", Key: nextKey, Err: err}
		}
		if err := s.storeTile(next); err != nil {
			return &TileError{Op: "insert", Key: nextKey, Err: err}
		}

		current = next
	}

	logger.Debug("inserted tile")
	return nil
}

// lockPath locks every key from ancestor down to key, shallowest first, and
// returns a function that unlocks them. Locking in depth order means that
// overlapping paths are always locked in the same order.
func (s *TileStore) lockPath(ancestor, key TileKey) func() {
	mutexes := make([]*sync.Mutex, 0, key.Depth-ancestor.Depth+1)
	for depth := ancestor.Depth; depth <= key.Depth; depth++ {
		value, _ := s.keyLocks.LoadOrStore(key.Ancestor(depth), &sync.Mutex{})
		mutex := value.(*sync.Mutex)
		mutex.Lock()
		mutexes = append(mutexes, mutex)
	}
	return func() {
		for i := len(mutexes) - 1; i >= 0; i-- {
			mutexes[i].Unlock()
		}
	}
}

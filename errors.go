package blockstorm

import (
	"github.com/dshills/blockstorm/internal/codec"
	"github.com/dshills/blockstorm/internal/config"
	"github.com/dshills/blockstorm/internal/document"
	"github.com/dshills/blockstorm/internal/history"
	"github.com/dshills/blockstorm/internal/observe"
)

// Errors returned by editor operations. Each is the sentinel of the
// package that produces it, re-exported so callers can errors.Is against
// this package alone.
var (
	// ErrNothingToUndo indicates the undo stack is empty.
	ErrNothingToUndo = history.ErrNothingToUndo

	// ErrNothingToRedo indicates the redo stack is empty.
	ErrNothingToRedo = history.ErrNothingToRedo

	// ErrInvalidBlocks indicates serialized input that does not describe a
	// valid block list.
	ErrInvalidBlocks = codec.ErrInvalidBlocks

	// ErrDuplicateID indicates a block id already present in the document.
	ErrDuplicateID = document.ErrDuplicateID

	// ErrInvalidRecord indicates a block missing required parts, such as an
	// empty type.
	ErrInvalidRecord = document.ErrInvalidRecord

	// ErrInvalidValue indicates a field or tune payload that is not valid
	// JSON.
	ErrInvalidValue = document.ErrInvalidValue

	// ErrInvalidSettings indicates configuration that failed validation.
	ErrInvalidSettings = config.ErrInvalidSettings

	// ErrNilHandler indicates a nil change handler was subscribed.
	ErrNilHandler = observe.ErrNilHandler
)

package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownExtension indicates the extension id was not discovered.
	ErrUnknownExtension = errors.New("unknown extension")

	// ErrAlreadyLoaded indicates the extension already has a live sandbox.
	ErrAlreadyLoaded = errors.New("extension already loaded")

	// ErrNotLoaded indicates the extension has no live sandbox.
	ErrNotLoaded = errors.New("extension not loaded")
)

// HookError reports a hook invocation that failed inside an
// extension's sandbox. It is the unit of fault containment: the
// failure names its extension and hook and never propagates as a
// panic or crash.
type HookError struct {
	ExtensionID string
	Hook        string
	Message     string
}

// Error implements the error interface.
func (e *HookError) Error() string {
	return fmt.Sprintf("extension %q: hook %s: %s", e.ExtensionID, e.Hook, e.Message)
}

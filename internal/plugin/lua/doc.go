// Package lua wraps gopher-lua for the extension runtime.
//
// Each extension gets its own State: a Lua interpreter with only the
// safe standard libraries open and the load-from-disk primitives
// removed. The Bridge converts values across the Go/Lua boundary.
//
// A State is single-purpose: it is bound to one extension's source for
// its whole life and closed when the extension unloads, so no script
// state survives a disable/enable cycle.
//
// gopher-lua's LState is not goroutine-safe. All calls into a State
// must happen on the goroutine that owns the extension registry; the
// runtime is a single-threaded cooperative model and performs no
// cross-goroutine call marshaling.
package lua

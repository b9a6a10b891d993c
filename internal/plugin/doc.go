// Package plugin implements the Lua extension runtime.
//
// Extensions are Lua scripts discovered under a single extensions
// directory. Each enabled extension runs inside its own sandboxed
// interpreter and reacts to application lifecycle and record events
// through a fixed set of named hooks. A faulty extension never takes
// down its neighbors: hook failures are contained at the sandbox
// boundary and surfaced as HookError values.
//
// The Registry owns discovery, load/unload, and the persisted
// enabled flags. The Dispatcher fans typed events out to every
// loaded sandbox in deterministic discovery order.
package plugin

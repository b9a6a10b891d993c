package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// State wraps one sandboxed gopher-lua interpreter.
type State struct {
	L      *lua.LState
	closed bool
}

// NewState creates a Lua state with only the safe standard libraries
// open and the sandbox restrictions applied.
func NewState() *State {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	openSafeLibraries(L)
	restrict(L)

	return &State{L: L}
}

// openSafeLibraries opens the Lua standard libraries that scripts may
// use. io, os, debug and package loading stay closed: extensions
// observe data, they do not touch the machine.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// EvalFile executes a Lua file and returns the script's first returned
// value (lua.LNil when the script returns nothing).
func (s *State) EvalFile(path string) (lua.LValue, error) {
	if s.closed {
		return lua.LNil, ErrStateClosed
	}

	fn, err := s.L.LoadFile(path)
	if err != nil {
		return lua.LNil, err
	}

	top := s.L.GetTop()
	s.L.Push(fn)

	if err := s.pcall(0); err != nil {
		return lua.LNil, err
	}

	nret := s.L.GetTop() - top
	if nret <= 0 {
		return lua.LNil, nil
	}
	ret := s.L.Get(top + 1)
	s.L.Pop(nret)
	return ret, nil
}

// Call invokes a Lua function with the given arguments, discarding
// returned values. Script faults and panics are converted to errors.
func (s *State) Call(fn *lua.LFunction, args ...lua.LValue) error {
	if s.closed {
		return ErrStateClosed
	}

	top := s.L.GetTop()
	s.L.Push(fn)
	for _, arg := range args {
		s.L.Push(arg)
	}

	if err := s.pcall(len(args)); err != nil {
		return err
	}

	if nret := s.L.GetTop() - top; nret > 0 {
		s.L.Pop(nret)
	}
	return nil
}

// pcall runs the function already on the stack with panic recovery.
// gopher-lua can panic on stack misuse; that must never unwind into
// the dispatcher.
func (s *State) pcall(nargs int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return s.L.PCall(nargs, lua.MultRet, nil)
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) {
	if s.closed {
		return
	}
	s.L.SetGlobal(name, value)
}

// RegisterFunc exposes a Go function as a global Lua function.
func (s *State) RegisterFunc(name string, fn lua.LGFunction) {
	if s.closed {
		return
	}
	s.L.SetGlobal(name, s.L.NewFunction(fn))
}

// RegisterModule exposes a table of Go functions as a global.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	if s.closed {
		return
	}
	mod := s.L.SetFuncs(s.L.NewTable(), funcs)
	s.L.SetGlobal(name, mod)
}

// LuaState returns the underlying gopher-lua state.
func (s *State) LuaState() *lua.LState {
	return s.L
}

// IsClosed reports whether Close has been called.
func (s *State) IsClosed() bool {
	return s.closed
}

// Close releases all interpreter resources. Safe to call twice.
func (s *State) Close() {
	if s.closed {
		return
	}
	s.L.Close()
	s.closed = true
}

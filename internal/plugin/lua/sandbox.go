package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// restrict removes the globals a script could use to escape the
// sandbox: loading code from disk or strings, and module loading.
// io, os and debug are never opened (see openSafeLibraries), so the
// only reachable side effects are the host bridge functions.
func restrict(L *lua.LState) {
	for _, name := range []string{
		"dofile",
		"loadfile",
		"load",
		"loadstring",
		"require",
	} {
		L.SetGlobal(name, lua.LNil)
	}

	// Base may have installed a package table even with the package
	// library closed; neuter its search paths.
	if pkg, ok := L.GetGlobal("package").(*lua.LTable); ok {
		L.SetField(pkg, "path", lua.LString(""))
		L.SetField(pkg, "cpath", lua.LString(""))
	}
}

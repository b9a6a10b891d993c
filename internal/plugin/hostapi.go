package plugin

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	glua "github.com/yuin/gopher-lua"

	plua "github.com/ledgerline/ledgerline/internal/plugin/lua"
	"github.com/ledgerline/ledgerline/internal/logging"
)

// installHostAPI registers the host functions every sandbox sees:
//
//	log(msg)            info-level line tagged with the extension id
//	print(...)          debug-level line, values joined by tabs
//	json.decode(s)      JSON string to Lua value, or nil, err
//	json.encode(v)      Lua value to JSON string, or nil, err
//
// This is the whole bridge. Extensions get no filesystem, network,
// or process access.
func installHostAPI(state *plua.State, bridge *plua.Bridge, log *logging.Logger) {
	state.RegisterFunc("log", func(L *glua.LState) int {
		log.Info("%s", L.OptString(1, ""))
		return 0
	})

	state.RegisterFunc("print", func(L *glua.LState) int {
		top := L.GetTop()
		parts := make([]string, 0, top)
		for i := 1; i <= top; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		log.Debug("%s", strings.Join(parts, "\t"))
		return 0
	})

	state.RegisterModule("json", map[string]glua.LGFunction{
		"decode": func(L *glua.LState) int {
			raw := L.CheckString(1)
			if !gjson.Valid(raw) {
				L.Push(glua.LNil)
				L.Push(glua.LString("invalid json"))
				return 2
			}
			L.Push(jsonToLua(L, gjson.Parse(raw)))
			return 1
		},
		"encode": func(L *glua.LState) int {
			data, err := json.Marshal(bridge.ToGoValue(L.CheckAny(1)))
			if err != nil {
				L.Push(glua.LNil)
				L.Push(glua.LString(err.Error()))
				return 2
			}
			L.Push(glua.LString(data))
			return 1
		},
	})
}

// jsonToLua converts a parsed JSON value into the Lua equivalent.
// Objects become string-keyed tables, arrays 1-indexed tables.
func jsonToLua(L *glua.LState, r gjson.Result) glua.LValue {
	switch {
	case r.IsArray():
		t := L.NewTable()
		for i, elem := range r.Array() {
			t.RawSetInt(i+1, jsonToLua(L, elem))
		}
		return t
	case r.IsObject():
		t := L.NewTable()
		r.ForEach(func(key, value gjson.Result) bool {
			t.RawSetString(key.String(), jsonToLua(L, value))
			return true
		})
		return t
	case r.Type == gjson.String:
		return glua.LString(r.Str)
	case r.Type == gjson.Number:
		return glua.LNumber(r.Num)
	case r.Type == gjson.True:
		return glua.LTrue
	case r.Type == gjson.False:
		return glua.LFalse
	default:
		return glua.LNil
	}
}

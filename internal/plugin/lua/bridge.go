package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Bridge converts values across the Go/Lua boundary for one state.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// ToGoValue converts a Lua value to its Go representation. Tables with
// contiguous 1..n integer keys become []any, all other tables become
// map[string]any. Functions and userdata convert to nil.
func (b *Bridge) ToGoValue(lv lua.LValue) any {
	return b.toGo(lv, make(map[*lua.LTable]bool))
}

func (b *Bridge) toGo(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil // break cycles
		}
		visited[v] = true
		return b.tableToGo(v, visited)
	default:
		return nil
	}
}

func (b *Bridge) tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	maxN := 0
	count := 0
	isArray := true
	t.ForEach(func(k, _ lua.LValue) {
		count++
		kn, ok := k.(lua.LNumber)
		if !ok || float64(kn) != float64(int(kn)) || int(kn) < 1 {
			isArray = false
			return
		}
		if int(kn) > maxN {
			maxN = int(kn)
		}
	})

	if isArray && count == maxN && maxN > 0 {
		arr := make([]any, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = b.toGo(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = fmt.Sprintf("%v", float64(kv))
		default:
			key = k.String()
		}
		m[key] = b.toGo(v, visited)
	})
	return m
}

// ToLuaValue converts a Go value to its Lua representation.
func (b *Bridge) ToLuaValue(v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []any:
		t := b.L.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, b.ToLuaValue(e))
		}
		return t
	case []string:
		t := b.L.NewTable()
		for i, e := range val {
			t.RawSetInt(i+1, lua.LString(e))
		}
		return t
	case map[string]any:
		t := b.L.NewTable()
		for k, e := range val {
			t.RawSetString(k, b.ToLuaValue(e))
		}
		return t
	case lua.LValue:
		return val
	default:
		return lua.LNil
	}
}

// TableString reads a string field from a table; ok is false when the
// field is absent or not a string.
func (b *Bridge) TableString(t *lua.LTable, key string) (string, bool) {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s), true
	}
	return "", false
}

// TableFunc reads a function field from a table.
func (b *Bridge) TableFunc(t *lua.LTable, key string) (*lua.LFunction, bool) {
	if f, ok := t.RawGetString(key).(*lua.LFunction); ok {
		return f, true
	}
	return nil, false
}

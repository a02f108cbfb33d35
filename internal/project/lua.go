package project

import (
	"errors"

	lua "github.com/yuin/gopher-lua"
)

// loadLua runs a project.lua script in a restricted interpreter and returns
// the table it returns as a generic document. Only the base, table and
// string libraries are opened; the script is configuration, not a plugin.
func loadLua(path string) (map[string]any, error) {
	state := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer state.Close()

	for _, open := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
	} {
		if err := state.CallByParam(lua.P{
			Fn:      state.NewFunction(open.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(open.name)); err != nil {
			return nil, err
		}
	}

	if err := state.DoFile(path); err != nil {
		return nil, err
	}

	ret := state.Get(-1)
	table, ok := ret.(*lua.LTable)
	if !ok {
		return nil, errors.New("script must return a table")
	}

	doc, ok := luaToGo(table, make(map[*lua.LTable]bool)).(map[string]any)
	if !ok {
		return nil, errors.New("script must return a table of named fields")
	}
	return doc, nil
}

// luaToGo converts a Lua value into plain Go data. Tables with contiguous
// 1-based integer keys become slices, all others become maps. The visited
// set breaks reference cycles.
func luaToGo(value lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := value.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return tableToGo(v, visited)
	default:
		return nil
	}
}

func tableToGo(table *lua.LTable, visited map[*lua.LTable]bool) any {
	length := table.Len()
	if length > 0 {
		arr := make([]any, 0, length)
		isArray := true
		table.ForEach(func(key, _ lua.LValue) {
			n, ok := key.(lua.LNumber)
			if !ok || float64(n) != float64(int(n)) || int(n) < 1 || int(n) > length {
				isArray = false
			}
		})
		if isArray {
			for i := 1; i <= length; i++ {
				arr = append(arr, luaToGo(table.RawGetInt(i), visited))
			}
			return arr
		}
	}

	out := make(map[string]any)
	table.ForEach(func(key, val lua.LValue) {
		if name, ok := key.(lua.LString); ok {
			out[string(name)] = luaToGo(val, visited)
		}
	})
	return out
}

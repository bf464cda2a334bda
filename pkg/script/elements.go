package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/ormasoftchile/lazylink/pkg/locator"
	"github.com/ormasoftchile/lazylink/pkg/providers"
)

const elementType = "lazylink.element"

// registerElements exposes the locator map as the global elements table.
// Groups are tables; elements are userdata whose mutating methods return
// the root table, so calls chain:
//
//	elements.login.user:value("ann").login.submit:click()
func (h *Host) registerElements(L *lua.LState) {
	root := L.NewTable()
	L.SetGlobal("elements", root)
	if h.Elements == nil {
		return
	}
	mt := L.NewTypeMetatable(elementType)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), h.elementMethods(root)))
	fillGroup(L, root, h.Elements.Group, mt)
}

func fillGroup(L *lua.LState, t *lua.LTable, g *locator.Group, mt lua.LValue) {
	for _, name := range g.Names() {
		if el, ok := g.Elements[name]; ok {
			ud := L.NewUserData()
			ud.Value = el
			L.SetMetatable(ud, mt)
			t.RawSetString(name, ud)
			continue
		}
		sub := L.NewTable()
		fillGroup(L, sub, g.Groups[name], mt)
		t.RawSetString(name, sub)
	}
}

func checkElement(L *lua.LState) *locator.Element {
	ud := L.CheckUserData(1)
	el, ok := ud.Value.(*locator.Element)
	if !ok {
		L.ArgError(1, "element expected")
	}
	return el
}

func stringArgs(L *lua.LState) []string {
	out := make([]string, 0, L.GetTop())
	for i := 2; i <= L.GetTop(); i++ {
		out = append(out, L.CheckString(i))
	}
	return out
}

func intArgs(L *lua.LState) []int {
	out := make([]int, 0, L.GetTop())
	for i := 2; i <= L.GetTop(); i++ {
		out = append(out, L.CheckInt(i))
	}
	return out
}

func (h *Host) elementMethods(root *lua.LTable) map[string]lua.LGFunction {
	chain := func(fn func(L *lua.LState, el *locator.Element)) lua.LGFunction {
		return func(L *lua.LState) int {
			fn(L, checkElement(L))
			h.unwind(L)
			L.Push(root)
			return 1
		}
	}
	methods := map[string]lua.LGFunction{
		"value": chain(func(L *lua.LState, el *locator.Element) {
			el.Value(L.Context(), stringArgs(L)...)
		}),
		"selectByIndex": chain(func(L *lua.LState, el *locator.Element) {
			el.SelectByIndex(L.Context(), intArgs(L)...)
		}),
		"selectByIndexOrLast": chain(func(L *lua.LState, el *locator.Element) {
			el.SelectByIndexOrLast(L.Context(), L.CheckInt(2))
		}),
		"selectByCode": chain(func(L *lua.LState, el *locator.Element) {
			el.SelectByCode(L.Context(), stringArgs(L)...)
		}),
		"selectByText": chain(func(L *lua.LState, el *locator.Element) {
			el.SelectByText(L.Context(), stringArgs(L)...)
		}),
		"click": chain(func(L *lua.LState, el *locator.Element) {
			el.Click(L.Context(), intArgs(L)...)
		}),
		"saveToVar": chain(func(L *lua.LState, el *locator.Element) {
			el.SaveToVar(L.Context(), L.OptString(2, ""))
		}),
		"valueFromVar": chain(func(L *lua.LState, el *locator.Element) {
			el.ValueFromVar(L.Context(), L.OptString(2, ""))
		}),

		"getMacro": func(L *lua.LState) int {
			L.Push(lua.LString(checkElement(L).Macro()))
			return 1
		},
		"name": func(L *lua.LState) int {
			L.Push(lua.LString(checkElement(L).Name()))
			return 1
		},
		"path": func(L *lua.LState) int {
			L.Push(lua.LString(checkElement(L).Path()))
			return 1
		},
		"getId": func(L *lua.LState) int {
			L.Push(lua.LString(checkElement(L).ID()))
			return 1
		},
		"exists": func(L *lua.LState) int {
			L.Push(lua.LBool(checkElement(L).Exists(L.Context())))
			return 1
		},
		"getSelectedIndex": func(L *lua.LState) int {
			idx, err := checkElement(L).SelectedIndex(L.Context())
			return pushResult(L, lua.LNumber(idx), err)
		},
		"getSelectedCode": func(L *lua.LState) int {
			code, err := checkElement(L).SelectedCode(L.Context())
			return pushResult(L, lua.LString(code), err)
		},
		"getSelectedText": func(L *lua.LState) int {
			text, err := checkElement(L).SelectedText(L.Context())
			return pushResult(L, lua.LString(text), err)
		},
		"getElement": func(L *lua.LState) int {
			ref, err := checkElement(L).Lookup(L.Context())
			if err != nil {
				return pushResult(L, lua.LNil, err)
			}
			return pushResult(L, elementTable(L, ref), nil)
		},
	}
	// short aliases
	for alias, name := range map[string]string{
		"macro":         "getMacro",
		"id":            "getId",
		"selectedIndex": "getSelectedIndex",
		"selectedCode":  "getSelectedCode",
		"selectedText":  "getSelectedText",
	} {
		methods[alias] = methods[name]
	}
	return methods
}

// elementTable snapshots an element as
// {id, value, text, selectedIndex, options = {{value, text}, ...}}.
func elementTable(L *lua.LState, ref *providers.ElementRef) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LString(ref.ID))
	t.RawSetString("value", lua.LString(ref.Value))
	t.RawSetString("text", lua.LString(ref.Text))
	t.RawSetString("selectedIndex", lua.LNumber(ref.SelectedIndex))
	opts := L.NewTable()
	for _, o := range ref.Options {
		ot := L.NewTable()
		ot.RawSetString("value", lua.LString(o.Value))
		ot.RawSetString("text", lua.LString(o.Text))
		opts.Append(ot)
	}
	t.RawSetString("options", opts)
	return t
}

// pushResult follows the Lua convention of value on success and nil plus
// a message on failure.
func pushResult(L *lua.LState, v lua.LValue, err error) int {
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(v)
	return 1
}

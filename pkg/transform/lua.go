// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"context"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

// LuaTransform runs a script that defines a global transform(value)
// function. Each call gets a fresh sandboxed state.
type LuaTransform struct {
	name  string
	proto *lua.FunctionProto
}

// LoadLua compiles the script at path.
func LoadLua(path string) (*LuaTransform, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, synerrors.New(synerrors.CodeNotFound, "read transform script", err).WithContext("path", path)
	}
	return CompileLua(path, string(src))
}

// CompileLua compiles script source under name.
func CompileLua(name, source string) (*LuaTransform, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "parse transform script", err).WithContext("script", name)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "compile transform script", err).WithContext("script", name)
	}
	return &LuaTransform{name: name, proto: proto}, nil
}

// Apply calls transform(value) and returns its result as a string.
func (t *LuaTransform) Apply(ctx context.Context, value string) (string, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	openSafeLibs(L)
	L.SetContext(ctx)

	L.Push(L.NewFunctionFromProto(t.proto))
	if err := L.PCall(0, 0, nil); err != nil {
		return "", synerrors.New(synerrors.CodeInternal, "load transform script", err).WithContext("script", t.name)
	}
	fn := L.GetGlobal("transform")
	if fn.Type() != lua.LTFunction {
		return "", synerrors.New(synerrors.CodeInvalidInput, "script must define a 'transform' function", nil).
			WithContext("script", t.name)
	}
	L.Push(fn)
	L.Push(lua.LString(value))
	if err := L.PCall(1, 1, nil); err != nil {
		return "", synerrors.New(synerrors.CodeInternal, "transform script failed", err).WithContext("script", t.name)
	}
	ret := L.Get(-1)
	L.Pop(1)
	if ret == lua.LNil {
		return "", nil
	}
	return lua.LVAsString(ret), nil
}

// openSafeLibs loads base, table, string and math without file access,
// code loading or randomness.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	for _, name := range []string{"loadfile", "dofile", "load", "loadstring", "print", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		L.SetField(tbl, "random", lua.LNil)
		L.SetField(tbl, "randomseed", lua.LNil)
	}
}

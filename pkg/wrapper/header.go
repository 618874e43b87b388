/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package wrapper

import (
	"errors"

	lua "github.com/yuin/gopher-lua"
	"mosn.io/lua-stream-filter/pkg/api"
)

// ErrHeadersReleased is the script error for mutating a HeaderMap after
// its headers have already been continued downstream.
var ErrHeadersReleased = errors.New("headers already continued downstream")

// HeaderMap is the script-visible object over an api.HeaderMap,
// generalized from headerMapImpl (pkg/http/type.go): Get/Add/Remove map
// directly, Iterate replaces the unimplemented Range, and a released
// flag enforces the mutation-after-release rule.
type HeaderMap struct {
	guard    *Guard
	headers  api.HeaderMap
	released bool
}

// NewHeaderMap builds a wrapper over headers, registered against guard.
func NewHeaderMap(guard *Guard, headers api.HeaderMap) *HeaderMap {
	return &HeaderMap{guard: guard, headers: headers}
}

// Release marks the headers as handed off to the next filter; further
// mutation attempts fail with ErrHeadersReleased.
func (h *HeaderMap) Release() {
	h.released = true
}

func (h *HeaderMap) checkLive() error {
	return h.guard.Check()
}

// Add appends name=value.
func (h *HeaderMap) Add(name, value string) error {
	if err := h.checkLive(); err != nil {
		return err
	}
	if h.released {
		return ErrHeadersReleased
	}
	h.headers.Add(name, value)
	return nil
}

// Get returns the first value for name, or ("", false, nil) if absent.
func (h *HeaderMap) Get(name string) (string, bool, error) {
	if err := h.checkLive(); err != nil {
		return "", false, err
	}
	v, ok := h.headers.Get(name)
	return v, ok, nil
}

// Iterate calls fn for every (name, value) pair in map order. An error
// returned by fn aborts iteration and propagates to the caller.
func (h *HeaderMap) Iterate(fn func(name, value string) error) error {
	if err := h.checkLive(); err != nil {
		return err
	}
	var ferr error
	h.headers.Range(func(name, value string) bool {
		if err := fn(name, value); err != nil {
			ferr = err
			return false
		}
		return true
	})
	return ferr
}

// Remove deletes every value stored under name. Idempotent: removing an
// already-absent name is a no-op, never an error.
func (h *HeaderMap) Remove(name string) error {
	if err := h.checkLive(); err != nil {
		return err
	}
	if h.released {
		return ErrHeadersReleased
	}
	h.headers.Remove(name)
	return nil
}

// NewHeaderMapValue builds both the Go-side wrapper and the script-side
// Lua value for it: a table of Go-backed closures, one per exported
// method (add/get/iterate/remove). A table-of-closures is used instead
// of gopher-lua userdata+metatable so that every method dispatches
// straight to the captured *HeaderMap rather than through a second
// type-assertion layer; the scope guard inside that *HeaderMap is what
// actually enforces handle-scope liveness, not the Lua-side representation.
func NewHeaderMapValue(L *lua.LState, guard *Guard, headers api.HeaderMap) (*HeaderMap, lua.LValue) {
	h := NewHeaderMap(guard, headers)
	return h, h.buildValue(L)
}

// Every method below is called with Lua colon syntax (h:add(...)), so
// argument 1 on the stack is always the table itself (self); the real
// arguments start at index 2.
func (h *HeaderMap) buildValue(L *lua.LState) lua.LValue {
	t := L.NewTable()
	t.RawSetString("add", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(2)
		value := L.CheckString(3)
		if err := h.Add(name, value); err != nil {
			L.RaiseError("%s", err.Error())
		}
		return 0
	}))
	t.RawSetString("get", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(2)
		v, ok, err := h.Get(name)
		if err != nil {
			L.RaiseError("%s", err.Error())
		}
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(v))
		return 1
	}))
	t.RawSetString("iterate", L.NewFunction(func(L *lua.LState) int {
		cb := L.CheckFunction(2)
		err := h.Iterate(func(name, value string) error {
			L.Push(cb)
			L.Push(lua.LString(name))
			L.Push(lua.LString(value))
			return L.PCall(2, 0, nil)
		})
		if err != nil {
			L.RaiseError("%s", err.Error())
		}
		return 0
	}))
	t.RawSetString("remove", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(2)
		if err := h.Remove(name); err != nil {
			L.RaiseError("%s", err.Error())
		}
		return 0
	}))
	return t
}

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
	lua "github.com/yuin/gopher-lua"
	"mosn.io/lua-stream-filter/pkg/api"
)

// Buffer is the script-visible, read-only view over an
// api.BufferInstance; mutation APIs are intentionally not part of the
// exported surface. A Buffer pushed by bodyChunks() is only valid for
// the one native call that created it; callers must not retain it past
// that dispatch.
type Buffer struct {
	guard *Guard
	buf   api.BufferInstance
}

// NewBuffer builds a wrapper over buf, registered against guard.
func NewBuffer(guard *Guard, buf api.BufferInstance) *Buffer {
	return &Buffer{guard: guard, buf: buf}
}

// ByteSize returns the buffer's length.
func (b *Buffer) ByteSize() (int, error) {
	if err := b.guard.Check(); err != nil {
		return 0, err
	}
	return b.buf.Length(), nil
}

// NewBufferValue builds both the Go-side wrapper and the script-side Lua
// value for it: a table of Go-backed closures, mirroring the approach
// NewHeaderMapValue takes for HeaderMap rather than gopher-lua
// userdata+metatable.
func NewBufferValue(L *lua.LState, guard *Guard, buf api.BufferInstance) (*Buffer, lua.LValue) {
	b := NewBuffer(guard, buf)
	return b, b.buildValue(L)
}

// byteSize is colon-called (buf:byteSize()), so argument 1 on the stack
// is the table itself; byteSize takes no further arguments.
func (b *Buffer) buildValue(L *lua.LState) lua.LValue {
	t := L.NewTable()
	t.RawSetString("byteSize", L.NewFunction(func(L *lua.LState) int {
		size, err := b.ByteSize()
		if err != nil {
			L.RaiseError("%s", err.Error())
		}
		L.Push(lua.LNumber(size))
		return 1
	}))
	return t
}

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

package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// WorkerRuntime is one worker thread's independent instantiation of a
// Program: its own *lua.LState, its own globals, its own resolved entry
// points. Callers must confine a WorkerRuntime to a single goroutine for
// its whole lifetime.
type WorkerRuntime struct {
	L             *lua.LState
	requestEntry  *lua.LFunction
	responseEntry *lua.LFunction
}

// NewWorkerRuntime builds a fresh interpreter state, runs the compiled
// chunk once to populate its globals, and resolves the two well-known
// entry points. No state from this call is shared with any other
// WorkerRuntime built from the same Program.
func (p *Program) NewWorkerRuntime() (*WorkerRuntime, error) {
	L := lua.NewState()
	L.OpenLibs()

	fn := L.NewFunctionFromProto(p.proto)
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, fmt.Errorf("lua-stream-filter: run script chunk: %w", err)
	}

	wr := &WorkerRuntime{L: L}
	if f, ok := L.GetGlobal(RequestEntryPoint).(*lua.LFunction); ok {
		wr.requestEntry = f
	}
	if f, ok := L.GetGlobal(ResponseEntryPoint).(*lua.LFunction); ok {
		wr.responseEntry = f
	}
	return wr, nil
}

// HasRequestEntryPoint reports whether envoy_on_request is defined.
func (w *WorkerRuntime) HasRequestEntryPoint() bool { return w.requestEntry != nil }

// HasResponseEntryPoint reports whether envoy_on_response is defined.
func (w *WorkerRuntime) HasResponseEntryPoint() bool { return w.responseEntry != nil }

// RequestEntry returns the resolved envoy_on_request function, or nil.
func (w *WorkerRuntime) RequestEntry() *lua.LFunction { return w.requestEntry }

// ResponseEntry returns the resolved envoy_on_response function, or nil.
func (w *WorkerRuntime) ResponseEntry() *lua.LFunction { return w.responseEntry }

// Close releases the interpreter state. Call when the worker is torn
// down, not between streams: the runtime outlives every stream that
// uses it.
func (w *WorkerRuntime) Close() {
	w.L.Close()
}

// NewCoroutine spawns a fresh coroutine bound to this runtime, ready to
// be started with entry as its body. One coroutine per (stream,
// direction) pair.
func (w *WorkerRuntime) NewCoroutine(entry *lua.LFunction) *Coroutine {
	co, _ := w.L.NewThread()
	return &Coroutine{
		parent: w.L,
		co:     co,
		entry:  entry,
		state:  CoroutineCreated,
	}
}

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
	lua "github.com/yuin/gopher-lua"
)

// CoroutineState mirrors the four-state lifecycle leafo-golapis tracks
// for its cgo-backed LuaThread (created/running/yielded/dead), adapted
// to gopher-lua's own coroutine model.
type CoroutineState int

const (
	CoroutineCreated CoroutineState = iota
	CoroutineRunning
	CoroutineYielded
	CoroutineDead
)

// Coroutine is one cooperative execution context tied to a
// WorkerRuntime's interpreter, created on first invocation in a
// direction and destroyed when the script returns or errors.
type Coroutine struct {
	parent *lua.LState
	co     *lua.LState
	entry  *lua.LFunction
	state  CoroutineState
}

// State reports the coroutine's current lifecycle state.
func (c *Coroutine) State() CoroutineState { return c.state }

// ParentState returns the worker's base *lua.LState, the one callers
// should use to build wrapper values that must survive independent of
// whichever thread happens to be running when they are constructed.
func (c *Coroutine) ParentState() *lua.LState { return c.parent }

// Resume starts the coroutine (first call) or continues it (subsequent
// calls) with args pushed as the values the script receives from its
// last yield point (or as the entry point's arguments, on the first
// call). It returns whatever the script yielded or returned, whether
// the coroutine is now dead, and any script error.
//
// A coroutine is resumed only from the goroutine that owns its
// WorkerRuntime; this type does no locking.
func (c *Coroutine) Resume(args ...lua.LValue) (values []lua.LValue, dead bool, err error) {
	if c.state == CoroutineDead {
		return nil, true, errCoroutineDead
	}

	c.state = CoroutineRunning
	status, rerr, rets := c.parent.Resume(c.co, c.entry, args...)

	switch status {
	case lua.ResumeOK:
		c.state = CoroutineDead
		return rets, true, rerr
	case lua.ResumeYield:
		c.state = CoroutineYielded
		return rets, false, rerr
	default: // lua.ResumeError
		c.state = CoroutineDead
		return rets, true, rerr
	}
}

// Abandon marks the coroutine dead without resuming it, for the
// filter-destroyed cancellation path: the coroutine is simply dropped,
// never resumed again.
func (c *Coroutine) Abandon() {
	c.state = CoroutineDead
}

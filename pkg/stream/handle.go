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

// Package stream implements the StreamHandleWrapper state machine: the
// bridge between the proxy's push-model pipeline events (headers, data,
// trailers) and the script's pull-model coroutine (headers(), body(),
// bodyChunks(), trailers()).
package stream

import (
	lua "github.com/yuin/gopher-lua"

	"mosn.io/lua-stream-filter/pkg/api"
	"mosn.io/lua-stream-filter/pkg/logger"
	"mosn.io/lua-stream-filter/pkg/script"
	"mosn.io/lua-stream-filter/pkg/wrapper"
)

// State is the handle's position in the headers/body/trailers lifecycle.
type State int

const (
	Running State = iota
	WaitForBody
	WaitForBodyChunk
	WaitForTrailers
)

// Handle is the per-(stream, direction) object passed to the script as
// its single argument. One Handle owns exactly one coroutine; neither
// outlives the pipeline invocation chain that created it.
type Handle struct {
	callbacks api.FilterCallbacks
	log       *logger.ScriptLogger

	guard   *wrapper.Guard
	headers api.HeaderMap

	trailers      api.HeaderMap
	trailersKnown bool

	bufferedBody api.BufferInstance
	endStream    bool

	state State
	co    *script.Coroutine

	started  bool
	finished bool

	self lua.LValue

	headersWrapper  *wrapper.HeaderMap
	headersValue    lua.LValue
	headersReleased bool

	trailersWrapper *wrapper.HeaderMap
	trailersValue   lua.LValue
}

// NewHandle builds a Handle over headers, bound to co. L is used to
// build the script-visible table of closures; it may be the worker's
// base state or the coroutine's own thread — both see the same Go
// closures since gopher-lua tables and functions are not state-bound.
func NewHandle(L *lua.LState, co *script.Coroutine, callbacks api.FilterCallbacks, headers api.HeaderMap, log *logger.ScriptLogger) *Handle {
	h := &Handle{
		callbacks: callbacks,
		log:       log,
		guard:     wrapper.NewGuard(),
		headers:   headers,
		co:        co,
		state:     Running,
	}
	h.self = h.buildSelf(L)
	return h
}

// resume drives the coroutine forward with arg as the single value the
// script's blocking call receives, resetting state to Running first so
// that an unsolicited coroutine.yield() (one that does not run through
// any of this handle's own blocking methods) is detectable: if nothing
// sets state to a WaitFor* value before yielding, it stays Running.
func (h *Handle) resume(arg lua.LValue) ([]lua.LValue, bool, error) {
	h.state = Running
	values, dead, err := h.co.Resume(arg)
	if dead {
		h.finished = true
	}
	return values, dead, err
}

// afterResume applies the post-resume rule (auto-deliver trailers once
// end_stream is already known, rather than stalling the script) and
// derives the StatusType to hand back to the proxy. pendingBodyStatus is
// the status to report if the coroutine is left parked in WaitForBody:
// StopIteration on the headers path, StopIterationAndBuffer on the data
// path.
func (h *Handle) afterResume(dead bool, err error, pendingBodyStatus api.StatusType) (api.StatusType, error) {
	if err != nil {
		return api.Continue, err
	}
	if !dead && h.state == Running {
		return api.Continue, ErrUnsolicitedYield
	}
	for !dead && h.state == WaitForTrailers && h.endStream {
		_, dead, err = h.resume(h.trailersResultValue())
		if err != nil {
			return api.Continue, err
		}
		if !dead && h.state == Running {
			return api.Continue, ErrUnsolicitedYield
		}
	}
	if dead {
		h.release()
		return api.Continue, nil
	}
	switch h.state {
	case WaitForBody:
		return pendingBodyStatus, nil
	default:
		// WaitForBodyChunk and WaitForTrailers both want ordinary,
		// per-frame pipeline delivery to continue rather than asking the
		// proxy to buffer on their behalf; only the whole-body wait
		// (WaitForBody) needs that. Either way this status change hands
		// the headers (and trailers, if constructed) off to the proxy,
		// so further script mutation must stop here.
		h.release()
		return api.Continue, nil
	}
}

// release marks any wrapper objects this handle has built as handed off
// to the proxy. Called every time afterResume is about to report a
// non-stop status: once that status reaches the proxy, headers (and
// trailers, if the script ever saw them) are continued downstream and
// further script mutation must be rejected, not silently applied to a
// copy the proxy will never see.
//
// headersReleased survives past this call: a script that never touched
// handle:headers() before the headers phase resolved would otherwise
// build a fresh, unreleased wrapper the first time it calls headers()
// later, even though the real headers are long gone downstream.
// headersWrapperValue consults the flag to release a wrapper the moment
// it is built, not just the ones already live when release() ran.
func (h *Handle) release() {
	h.headersReleased = true
	if h.headersWrapper != nil {
		h.headersWrapper.Release()
	}
	if h.trailersWrapper != nil {
		h.trailersWrapper.Release()
	}
}

// Start resumes the coroutine for the first time, with the handle itself
// as the script entry point's sole argument.
func (h *Handle) Start(endStream bool) (api.StatusType, error) {
	h.started = true
	h.endStream = endStream
	h.guard.SetLive(true)
	defer h.guard.SetLive(false)

	_, dead, err := h.resume(h.self)
	return h.afterResume(dead, err, api.StopIteration)
}

// OnData delivers one data frame, per the WaitForBody / WaitForBodyChunk /
// WaitForTrailers transition rows. Calling OnData before Start is a proxy
// contract violation.
func (h *Handle) OnData(buf api.BufferInstance, endStream bool) (api.StatusType, error) {
	if !h.started {
		panic(ContractViolation("lua-stream-filter: data delivered before headers"))
	}
	if h.finished {
		return api.Continue, nil
	}
	h.guard.SetLive(true)
	defer h.guard.SetLive(false)

	switch h.state {
	case WaitForBody:
		h.callbacks.AddData(buf)
		h.endStream = endStream
		if !endStream {
			return api.StopIterationAndBuffer, nil
		}
		h.bufferedBody = h.callbacks.BufferedBody()
		_, dead, err := h.resume(h.bodyResultValue())
		return h.afterResume(dead, err, api.StopIterationAndBuffer)

	case WaitForBodyChunk:
		h.endStream = endStream
		_, dead, err := h.resume(h.transientBufferValue(buf))
		return h.afterResume(dead, err, api.StopIterationAndBuffer)

	case WaitForTrailers:
		// Data frames pass through while the script waits for trailers;
		// an end of stream with no trailers resumes trailers() with nil.
		h.endStream = endStream
		if !endStream {
			return api.Continue, nil
		}
		_, dead, err := h.resume(h.trailersResultValue())
		return h.afterResume(dead, err, api.StopIterationAndBuffer)

	default:
		panic(ContractViolation("lua-stream-filter: data delivered while not awaiting it"))
	}
}

// OnTrailers delivers the direction's trailers (or records their
// absence at end of stream, via the data path's endStream=true instead
// — OnTrailers itself is only called when trailers actually arrive).
func (h *Handle) OnTrailers(trailers api.HeaderMap) (api.StatusType, error) {
	if !h.started {
		panic(ContractViolation("lua-stream-filter: trailers delivered before headers"))
	}
	if h.finished {
		return api.Continue, nil
	}
	h.guard.SetLive(true)
	defer h.guard.SetLive(false)

	h.trailers = trailers
	h.trailersKnown = true
	h.endStream = true

	switch h.state {
	case WaitForBody:
		h.bufferedBody = h.callbacks.BufferedBody()
		_, dead, err := h.resume(h.bodyResultValue())
		return h.afterResume(dead, err, api.Continue)

	case WaitForBodyChunk:
		_, dead, err := h.resume(lua.LNil)
		return h.afterResume(dead, err, api.Continue)

	case WaitForTrailers:
		_, dead, err := h.resume(h.trailersResultValue())
		return h.afterResume(dead, err, api.Continue)

	default:
		h.release()
		return api.Continue, nil
	}
}

// bodyResultValue is the value a resumed body() yield point receives:
// the whole accumulated buffer, or nil if nothing was ever buffered.
func (h *Handle) bodyResultValue() lua.LValue {
	if h.bufferedBody == nil {
		return lua.LNil
	}
	_, v := wrapper.NewBufferValue(h.co.ParentState(), h.guard, h.bufferedBody)
	return v
}

// trailersResultValue is the value a resumed trailers() yield point
// receives.
func (h *Handle) trailersResultValue() lua.LValue {
	if !h.trailersKnown {
		return lua.LNil
	}
	return h.trailersWrapperValue(h.co.ParentState())
}

// transientBufferValue wraps buf for exactly one bodyChunks() iteration;
// callers must not retain the wrapper past that call.
func (h *Handle) transientBufferValue(buf api.BufferInstance) lua.LValue {
	if buf == nil {
		return lua.LNil
	}
	_, v := wrapper.NewBufferValue(h.co.ParentState(), h.guard, buf)
	return v
}

func (h *Handle) headersWrapperValue(L *lua.LState) lua.LValue {
	if h.headersValue == nil {
		w, v := wrapper.NewHeaderMapValue(L, h.guard, h.headers)
		if h.headersReleased {
			w.Release()
		}
		h.headersWrapper = w
		h.headersValue = v
	}
	return h.headersValue
}

func (h *Handle) trailersWrapperValue(L *lua.LState) lua.LValue {
	if h.trailersValue == nil {
		w, v := wrapper.NewHeaderMapValue(L, h.guard, h.trailers)
		h.trailersWrapper = w
		h.trailersValue = v
	}
	return h.trailersValue
}

// buildSelf builds the Lua table passed to the script entry point: a
// table of Go closures, mirroring the pattern pkg/wrapper uses for
// HeaderMap and Buffer rather than userdata+metatable. Every method is
// colon-called (handle:body(), and so on), so Lua stack argument 1 is
// always the table itself; real arguments start at index 2.
func (h *Handle) buildSelf(L *lua.LState) lua.LValue {
	t := L.NewTable()

	t.RawSetString("headers", L.NewFunction(func(L *lua.LState) int {
		if err := h.guard.Check(); err != nil {
			L.RaiseError("%s", err.Error())
		}
		L.Push(h.headersWrapperValue(L))
		return 1
	}))

	t.RawSetString("body", L.NewFunction(func(L *lua.LState) int {
		if err := h.guard.Check(); err != nil {
			L.RaiseError("%s", err.Error())
		}
		if h.endStream {
			if h.bufferedBody == nil {
				h.bufferedBody = h.callbacks.BufferedBody()
			}
			L.Push(h.bodyResultValue())
			return 1
		}
		h.state = WaitForBody
		return L.Yield()
	}))

	t.RawSetString("bodyChunks", L.NewFunction(func(L *lua.LState) int {
		if err := h.guard.Check(); err != nil {
			L.RaiseError("%s", err.Error())
		}
		iter := L.NewFunction(func(L *lua.LState) int {
			if err := h.guard.Check(); err != nil {
				L.RaiseError("%s", err.Error())
			}
			if h.endStream {
				L.Push(lua.LNil)
				return 1
			}
			h.state = WaitForBodyChunk
			return L.Yield()
		})
		L.Push(iter)
		return 1
	}))

	t.RawSetString("trailers", L.NewFunction(func(L *lua.LState) int {
		if err := h.guard.Check(); err != nil {
			L.RaiseError("%s", err.Error())
		}
		if h.endStream {
			L.Push(h.trailersResultValue())
			return 1
		}
		h.state = WaitForTrailers
		return L.Yield()
	}))

	t.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		if err := h.guard.Check(); err != nil {
			L.RaiseError("%s", err.Error())
		}
		level := L.CheckInt(2)
		message := L.CheckString(3)
		h.log.Log(logger.Level(level), message)
		return 0
	}))

	// httpCall is part of the exported surface but not implemented by
	// this core; see the proxy-side async escape hatch note.
	t.RawSetString("httpCall", L.NewFunction(func(L *lua.LState) int {
		if err := h.guard.Check(); err != nil {
			L.RaiseError("%s", err.Error())
		}
		L.RaiseError("httpCall is not implemented")
		return 0
	}))

	return t
}

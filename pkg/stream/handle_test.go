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

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mosn.io/lua-stream-filter/pkg/api"
	"mosn.io/lua-stream-filter/pkg/logger"
	"mosn.io/lua-stream-filter/pkg/script"
)

type fakeHeaderMap struct {
	names  []string
	values map[string][]string
}

func newFakeHeaderMap(pairs ...string) *fakeHeaderMap {
	h := &fakeHeaderMap{values: map[string][]string{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Add(pairs[i], pairs[i+1])
	}
	return h
}

func (h *fakeHeaderMap) Get(name string) (string, bool) {
	vs := h.values[name]
	if len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}
func (h *fakeHeaderMap) Values(name string) []string { return h.values[name] }
func (h *fakeHeaderMap) Add(name, value string) {
	if _, ok := h.values[name]; !ok {
		h.names = append(h.names, name)
	}
	h.values[name] = append(h.values[name], value)
}
func (h *fakeHeaderMap) Remove(name string) { delete(h.values, name) }
func (h *fakeHeaderMap) Range(f func(name, value string) bool) {
	for _, name := range h.names {
		for _, value := range h.values[name] {
			if !f(name, value) {
				return
			}
		}
	}
}

type fakeBuffer struct{ data []byte }

func (b *fakeBuffer) Length() int   { return len(b.data) }
func (b *fakeBuffer) Bytes() []byte { return b.data }

type fakeStreamInfo struct{}

func (fakeStreamInfo) GetRouteName() string { return "test" }

type fakeCallbacks struct {
	body *fakeBuffer
}

func (c *fakeCallbacks) StreamInfo() api.StreamInfo { return fakeStreamInfo{} }
func (c *fakeCallbacks) Continue(api.StatusType)    {}
func (c *fakeCallbacks) AddData(buf api.BufferInstance) {
	b, ok := buf.(*fakeBuffer)
	if !ok {
		return
	}
	if c.body == nil {
		c.body = &fakeBuffer{data: append([]byte{}, b.data...)}
		return
	}
	c.body.data = append(c.body.data, b.data...)
}
func (c *fakeCallbacks) BufferedBody() api.BufferInstance {
	if c.body == nil {
		return nil
	}
	return c.body
}

func newTestHandle(t *testing.T, src string, headers *fakeHeaderMap) (*Handle, *fakeCallbacks, *observer.ObservedLogs) {
	t.Helper()
	p, err := script.Compile(src)
	require.NoError(t, err)
	wr, err := p.NewWorkerRuntime()
	require.NoError(t, err)
	t.Cleanup(wr.Close)

	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.New(zap.New(core))

	cb := &fakeCallbacks{}
	co := wr.NewCoroutine(wr.RequestEntry())
	h := NewHandle(wr.L, co, cb, headers, log)
	return h, cb, logs
}

func logMessages(logs *observer.ObservedLogs) []string {
	var out []string
	for _, e := range logs.All() {
		out = append(out, e.Message)
	}
	return out
}

// Scenario 1: headers-only script, headers-only request.
func TestHeadersOnlyScript(t *testing.T) {
	h, _, logs := newTestHandle(t, `
		function envoy_on_request(handle)
			handle:log(0, handle:headers():get(":path"))
		end
	`, newFakeHeaderMap(":path", "/"))

	status, err := h.Start(true)
	require.NoError(t, err)
	assert.Equal(t, api.Continue, status)
	assert.Equal(t, []string{"/"}, logMessages(logs))
}

// Scenario 2: bodyChunks with a single-frame body.
func TestBodyChunksSingleFrame(t *testing.T) {
	h, _, logs := newTestHandle(t, `
		function envoy_on_request(handle)
			handle:log(2, handle:headers():get(":path"))
			for chunk in handle:bodyChunks() do
				handle:log(2, tostring(chunk:byteSize()))
			end
			handle:log(2, "done")
		end
	`, newFakeHeaderMap(":path", "/"))

	status, err := h.Start(false)
	require.NoError(t, err)
	assert.Equal(t, api.Continue, status)

	status, err = h.OnData(&fakeBuffer{data: []byte("hello")}, true)
	require.NoError(t, err)
	assert.Equal(t, api.Continue, status)

	assert.Equal(t, []string{"/", "5", "done"}, logMessages(logs))
}

// Scenario 3: bodyChunks across body + trailers.
func TestBodyChunksAcrossBodyAndTrailers(t *testing.T) {
	h, _, logs := newTestHandle(t, `
		function envoy_on_request(handle)
			handle:log(2, handle:headers():get(":path"))
			for chunk in handle:bodyChunks() do
				handle:log(2, tostring(chunk:byteSize()))
			end
			local trailers = handle:trailers()
			if trailers then
				handle:log(2, trailers:get("foo"))
			else
				handle:log(2, "no trailers")
			end
		end
	`, newFakeHeaderMap(":path", "/"))

	status, err := h.Start(false)
	require.NoError(t, err)
	assert.Equal(t, api.Continue, status)

	status, err = h.OnData(&fakeBuffer{data: []byte("hello")}, false)
	require.NoError(t, err)
	assert.Equal(t, api.Continue, status)

	status, err = h.OnTrailers(newFakeHeaderMap("foo", "bar"))
	require.NoError(t, err)
	assert.Equal(t, api.Continue, status)

	assert.Equal(t, []string{"/", "5", "bar"}, logMessages(logs))
}

// Scenario 4: blocking body() across two frames.
func TestBlockingBodyAcrossTwoFrames(t *testing.T) {
	h, _, logs := newTestHandle(t, `
		function envoy_on_request(handle)
			handle:log(2, tostring(handle:body():byteSize()))
		end
	`, newFakeHeaderMap(":path", "/"))

	status, err := h.Start(false)
	require.NoError(t, err)
	assert.Equal(t, api.StopIteration, status)

	status, err = h.OnData(&fakeBuffer{data: []byte("hello")}, false)
	require.NoError(t, err)
	assert.Equal(t, api.StopIterationAndBuffer, status)

	status, err = h.OnData(&fakeBuffer{data: []byte("world")}, true)
	require.NoError(t, err)
	assert.Equal(t, api.Continue, status)

	assert.Equal(t, []string{"10"}, logMessages(logs))
}

// Scenario 5: unexpected yield.
func TestUnexpectedYield(t *testing.T) {
	h, _, _ := newTestHandle(t, `
		function envoy_on_request(handle)
			coroutine.yield()
		end
	`, newFakeHeaderMap(":path", "/"))

	status, err := h.Start(true)
	assert.Equal(t, api.Continue, status)
	assert.ErrorIs(t, err, ErrUnsolicitedYield)
}

// Headers already built and handed to a script before the headers phase
// resolves must reject mutation once that phase's status goes out as
// Continue: the wrapper's Release() has to actually run through the
// real Start/OnData path, not just in isolation.
func TestHeadersMutationRejectedAfterRelease(t *testing.T) {
	h, _, logs := newTestHandle(t, `
		function envoy_on_request(handle)
			local h = handle:headers()
			for chunk in handle:bodyChunks() do
				handle:log(2, tostring(chunk:byteSize()))
			end
			local ok, err = pcall(function() h:add("x-late", "v") end)
			handle:log(2, tostring(ok))
			handle:log(2, tostring(err))
		end
	`, newFakeHeaderMap(":path", "/"))

	status, err := h.Start(false)
	require.NoError(t, err)
	assert.Equal(t, api.Continue, status)

	status, err = h.OnData(&fakeBuffer{data: []byte("hello")}, true)
	require.NoError(t, err)
	assert.Equal(t, api.Continue, status)

	messages := logMessages(logs)
	require.Len(t, messages, 3)
	assert.Equal(t, "5", messages[0])
	assert.Equal(t, "false", messages[1])
	assert.Contains(t, messages[2], "headers already continued downstream")
}

// A script that never touches handle:headers() until after the headers
// phase has already resolved must still find it released: the guard
// cannot depend on the wrapper having existed at release time.
func TestHeadersMutationRejectedWhenAccessedLate(t *testing.T) {
	h, _, logs := newTestHandle(t, `
		function envoy_on_request(handle)
			for chunk in handle:bodyChunks() do
				handle:log(2, tostring(chunk:byteSize()))
			end
			local ok, err = pcall(function() handle:headers():add("x-late", "v") end)
			handle:log(2, tostring(ok))
			handle:log(2, tostring(err))
		end
	`, newFakeHeaderMap(":path", "/"))

	status, err := h.Start(false)
	require.NoError(t, err)
	assert.Equal(t, api.Continue, status)

	status, err = h.OnData(&fakeBuffer{data: []byte("hello")}, true)
	require.NoError(t, err)
	assert.Equal(t, api.Continue, status)

	messages := logMessages(logs)
	require.Len(t, messages, 3)
	assert.Equal(t, "5", messages[0])
	assert.Equal(t, "false", messages[1])
	assert.Contains(t, messages[2], "headers already continued downstream")
}

// Scenario 6: cross-stream handle capture.
func TestCrossStreamHandleCapture(t *testing.T) {
	p, err := script.Compile(`
		captured = nil
		function envoy_on_request(handle)
			if captured == nil then
				captured = handle
			else
				captured:log(0, "from old stream")
			end
		end
	`)
	require.NoError(t, err)
	wr, err := p.NewWorkerRuntime()
	require.NoError(t, err)
	defer wr.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.New(zap.New(core))

	// First stream: captures its handle into the global.
	cb1 := &fakeCallbacks{}
	co1 := wr.NewCoroutine(wr.RequestEntry())
	h1 := NewHandle(wr.L, co1, cb1, newFakeHeaderMap(":path", "/1"), log)
	status, err := h1.Start(true)
	require.NoError(t, err)
	assert.Equal(t, api.Continue, status)
	assert.Empty(t, logMessages(logs))

	// Second stream: script tries to use the captured handle from the
	// first stream, now dead.
	cb2 := &fakeCallbacks{}
	co2 := wr.NewCoroutine(wr.RequestEntry())
	h2 := NewHandle(wr.L, co2, cb2, newFakeHeaderMap(":path", "/2"), log)
	status, err = h2.Start(true)
	assert.Equal(t, api.Continue, status)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object used outside of proper scope")
}

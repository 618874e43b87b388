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

// Package filter binds the stream state machine to the proxy's two
// pipeline directions and contains script failures so a script bug
// never takes down the stream it is attached to.
package filter

import (
	"go.uber.org/zap"

	"github.com/google/uuid"

	"mosn.io/lua-stream-filter/pkg/api"
	"mosn.io/lua-stream-filter/pkg/logger"
	"mosn.io/lua-stream-filter/pkg/script"
	"mosn.io/lua-stream-filter/pkg/stream"
)

// Adapter is one stream's worth of both directions. It is built fresh
// per stream by a HttpFilterFactory and is never reused across streams.
type Adapter struct {
	runtime *script.WorkerRuntime
	log     *logger.ScriptLogger

	correlationID string

	callbacks api.FilterCallbacks

	request  *stream.Handle
	response *stream.Handle
}

// NewAdapter builds an Adapter bound to one worker's runtime for one
// stream. The request/response handles are created lazily, on the first
// DecodeHeaders/EncodeHeaders call, once the direction's real HeaderMap
// is available.
func NewAdapter(runtime *script.WorkerRuntime, log *logger.ScriptLogger, callbacks api.FilterCallbacks) *Adapter {
	return &Adapter{
		runtime:       runtime,
		log:           log,
		correlationID: uuid.NewString(),
		callbacks:     callbacks,
	}
}

// contain recovers a panic or reports err, converting either into the
// "script failure never kills the stream" policy: log at error level
// with the stream's correlation id, drop both handles, and force the
// named return status to api.Continue regardless of what the script was
// doing or how far it got.
//
// A stream.ContractViolation panic is not a script failure, it is the
// proxy calling a handle out of protocol, so it is re-panicked instead
// of being absorbed: that class of bug must crash the worker, not hide
// behind the same Continue a misbehaving script gets.
func (a *Adapter) contain(direction string, status *api.StatusType, err *error) {
	if r := recover(); r != nil {
		if _, ok := r.(stream.ContractViolation); ok {
			panic(r)
		}
		a.log.Log(logger.LevelError, "script panic", zap.String("correlation_id", a.correlationID), zap.String("direction", direction), zap.Any("panic", r))
		a.request = nil
		a.response = nil
		*status = api.Continue
		return
	}
	if *err != nil {
		a.log.Log(logger.LevelError, (*err).Error(), zap.String("correlation_id", a.correlationID), zap.String("direction", direction))
		a.request = nil
		a.response = nil
		*status = api.Continue
	}
}

// DecodeHeaders implements api.HttpDecoderFilter.
func (a *Adapter) DecodeHeaders(headers api.HeaderMap, endStream bool) (status api.StatusType) {
	if !a.runtime.HasRequestEntryPoint() {
		return api.Continue
	}
	var err error
	defer a.contain("request", &status, &err)

	co := a.runtime.NewCoroutine(a.runtime.RequestEntry())
	a.request = stream.NewHandle(a.runtime.L, co, a.callbacks, headers, a.log)
	status, err = a.request.Start(endStream)
	return status
}

// DecodeData implements api.HttpDecoderFilter.
func (a *Adapter) DecodeData(buf api.BufferInstance, endStream bool) (status api.StatusType) {
	if a.request == nil {
		return api.Continue
	}
	var err error
	defer a.contain("request", &status, &err)

	status, err = a.request.OnData(buf, endStream)
	return status
}

// DecodeTrailers implements api.HttpDecoderFilter.
func (a *Adapter) DecodeTrailers(trailers api.HeaderMap) (status api.StatusType) {
	if a.request == nil {
		return api.Continue
	}
	var err error
	defer a.contain("request", &status, &err)

	status, err = a.request.OnTrailers(trailers)
	return status
}

// EncodeHeaders implements api.StreamEncoderFilter.
func (a *Adapter) EncodeHeaders(headers api.HeaderMap, endStream bool) (status api.StatusType) {
	if !a.runtime.HasResponseEntryPoint() {
		return api.Continue
	}
	var err error
	defer a.contain("response", &status, &err)

	co := a.runtime.NewCoroutine(a.runtime.ResponseEntry())
	a.response = stream.NewHandle(a.runtime.L, co, a.callbacks, headers, a.log)
	status, err = a.response.Start(endStream)
	return status
}

// EncodeData implements api.StreamEncoderFilter.
func (a *Adapter) EncodeData(buf api.BufferInstance, endStream bool) (status api.StatusType) {
	if a.response == nil {
		return api.Continue
	}
	var err error
	defer a.contain("response", &status, &err)

	status, err = a.response.OnData(buf, endStream)
	return status
}

// EncodeTrailers implements api.StreamEncoderFilter.
func (a *Adapter) EncodeTrailers(trailers api.HeaderMap) (status api.StatusType) {
	if a.response == nil {
		return api.Continue
	}
	var err error
	defer a.contain("response", &status, &err)

	status, err = a.response.OnTrailers(trailers)
	return status
}

// OnDestroy drops both handles without resuming their coroutines: the
// stream is gone, so the script's outstanding yield (if any) is simply
// abandoned.
func (a *Adapter) OnDestroy(api.DestroyReason) {
	a.request = nil
	a.response = nil
}

// NewFilterFactory adapts one worker's runtime into an
// api.HttpFilterFactory, the shape the proxy's registration point
// expects; every filter it builds shares that runtime.
func NewFilterFactory(runtime *script.WorkerRuntime, log *logger.ScriptLogger) api.HttpFilterFactory {
	return func(callbacks api.FilterCallbacks) api.HttpFilter {
		return NewAdapter(runtime, log, callbacks)
	}
}

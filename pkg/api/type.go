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

// Package api declares the collaborator interfaces this core consumes
// from its host proxy. Nothing in this package talks to a real proxy;
// implementations live on the host side.
package api

// StatusType is the narrow vocabulary the stream state machine hands
// back to the proxy pipeline. Numbered to line up with the header/data
// status families in Envoy's envoy/http/filter.h.
type StatusType int

const (
	// Running means control has not yet returned a final verdict for this
	// pipeline call (the filter adapter is still dispatching).
	Running StatusType = 0
	// Continue lets the pipeline proceed to the next filter.
	Continue StatusType = 100
	// StopIteration halts iteration on a headers call; the proxy will not
	// deliver more events for this direction until something resumes it.
	StopIteration StatusType = 101
	// StopIterationAndBuffer halts iteration on a data call and tells the
	// proxy to keep buffering body frames for this direction.
	StopIterationAndBuffer StatusType = 201
)

// LogType names the integer log levels the script's log() call accepts.
// The stream handle itself converts those integers straight to
// pkg/logger.Level; LogType uses the same numbering.
type LogType int

const (
	Trace    LogType = 0
	Debug    LogType = 1
	Info     LogType = 2
	Warn     LogType = 3
	Error    LogType = 4
	Critical LogType = 5
)

// DestroyReason tells OnDestroy why the filter is going away.
type DestroyReason int

const (
	Normal    DestroyReason = 0
	Terminate DestroyReason = 1
)

// HeaderMap is a case-insensitive multi-map of header name to ordered
// values, as delivered by the proxy for one direction of one stream.
type HeaderMap interface {
	// Get returns the first value for name, or ("", false).
	Get(name string) (string, bool)
	// Values returns all values for name in map order.
	Values(name string) []string
	// Add appends a (name, value) pair without removing existing values.
	Add(name, value string)
	// Remove deletes every value stored under name.
	Remove(name string)
	// Range calls f for every (name, value) pair in map order, stopping
	// early if f returns false.
	Range(f func(name, value string) bool)
}

// BufferInstance is a read-only view over a body buffer. This core never
// mutates a BufferInstance; the exported surface to scripts is
// read-only (BufferWrapper.byteSize() only).
type BufferInstance interface {
	Length() int
	Bytes() []byte
}

// StreamInfo exposes metadata about the stream beyond headers/body.
type StreamInfo interface {
	GetRouteName() string
}

// FilterCallbacks is the subset of the proxy's per-direction callback
// surface this core needs: resuming the pipeline and inspecting/growing
// the direction's buffered body.
type FilterCallbacks interface {
	StreamInfo() StreamInfo
	// Continue resumes the pipeline with the given status. Must be the
	// last call the adapter makes for this event.
	Continue(StatusType)
	// AddData appends buf into the direction's buffered body.
	AddData(buf BufferInstance)
	// BufferedBody returns the buffer currently accumulated for this
	// direction, or nil if nothing has been buffered yet.
	BufferedBody() BufferInstance
}

// HttpDecoderFilter is the request-direction half of the pipeline
// protocol.
type HttpDecoderFilter interface {
	DecodeHeaders(headers HeaderMap, endStream bool) StatusType
	DecodeData(buf BufferInstance, endStream bool) StatusType
	DecodeTrailers(trailers HeaderMap) StatusType
}

// StreamEncoderFilter is the response-direction mirror.
type StreamEncoderFilter interface {
	EncodeHeaders(headers HeaderMap, endStream bool) StatusType
	EncodeData(buf BufferInstance, endStream bool) StatusType
	EncodeTrailers(trailers HeaderMap) StatusType
}

// HttpFilter is one stream's worth of both directions, plus lifecycle.
type HttpFilter interface {
	HttpDecoderFilter
	StreamEncoderFilter
	OnDestroy(DestroyReason)
}

// HttpFilterFactory builds one HttpFilter per stream.
type HttpFilterFactory func(callbacks FilterCallbacks) HttpFilter

// HttpFilterConfigFactory builds a HttpFilterFactory from the config
// object the registration point hands it; the samples expect a raw
// *anypb.Any and parse it with pkg/config.
type HttpFilterConfigFactory func(config interface{}) HttpFilterFactory

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

package main

import "mosn.io/lua-stream-filter/pkg/api"

// headerMap is the CLI's standalone implementation of api.HeaderMap,
// playing the role the proxy would otherwise fill.
type headerMap struct {
	names  []string
	values map[string][]string
}

func newHeaderMap(h map[string]string) *headerMap {
	m := &headerMap{values: make(map[string][]string, len(h))}
	for name, value := range h {
		m.names = append(m.names, name)
		m.values[name] = []string{value}
	}
	return m
}

func (h *headerMap) Get(name string) (string, bool) {
	vs := h.values[name]
	if len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (h *headerMap) Values(name string) []string {
	return h.values[name]
}

func (h *headerMap) Add(name, value string) {
	if _, ok := h.values[name]; !ok {
		h.names = append(h.names, name)
	}
	h.values[name] = append(h.values[name], value)
}

func (h *headerMap) Remove(name string) {
	delete(h.values, name)
	for i, n := range h.names {
		if n == name {
			h.names = append(h.names[:i], h.names[i+1:]...)
			break
		}
	}
}

func (h *headerMap) Range(f func(name, value string) bool) {
	for _, name := range h.names {
		for _, value := range h.values[name] {
			if !f(name, value) {
				return
			}
		}
	}
}

// buffer is the CLI's standalone implementation of api.BufferInstance.
type buffer struct {
	data []byte
}

func newBuffer(s string) *buffer {
	return &buffer{data: []byte(s)}
}

func (b *buffer) Length() int   { return len(b.data) }
func (b *buffer) Bytes() []byte { return b.data }

func appendBuffer(acc *buffer, next *buffer) *buffer {
	if acc == nil {
		out := make([]byte, len(next.data))
		copy(out, next.data)
		return &buffer{data: out}
	}
	acc.data = append(acc.data, next.data...)
	return acc
}

// streamInfo is the CLI's standalone implementation of api.StreamInfo.
type streamInfo struct{}

func (streamInfo) GetRouteName() string { return "luafilterctl" }

// callbacks is the CLI's standalone implementation of api.FilterCallbacks,
// tracking one buffered body per direction. direction is set by the
// trace runner immediately before each call into the adapter, the same
// way a real proxy's host binding would know which pipeline direction
// it is currently driving.
type callbacks struct {
	info      streamInfo
	direction string
	reqBody   *buffer
	rspBody   *buffer
}

func newCallbacks() *callbacks {
	return &callbacks{}
}

func (c *callbacks) StreamInfo() api.StreamInfo { return c.info }

func (c *callbacks) Continue(api.StatusType) {}

func (c *callbacks) AddData(buf api.BufferInstance) {
	b, ok := buf.(*buffer)
	if !ok || b == nil {
		return
	}
	if c.direction == "response" {
		c.rspBody = appendBuffer(c.rspBody, b)
	} else {
		c.reqBody = appendBuffer(c.reqBody, b)
	}
}

func (c *callbacks) BufferedBody() api.BufferInstance {
	var b *buffer
	if c.direction == "response" {
		b = c.rspBody
	} else {
		b = c.reqBody
	}
	if b == nil {
		return nil
	}
	return b
}

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

// Package script owns the per-worker script runtime: compile the
// configured source once, then hand every worker its own independent
// program instance with the two well-known entry points resolved.
package script

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// RequestEntryPoint and ResponseEntryPoint are the well-known global
// names a script may define. Either may be absent.
const (
	RequestEntryPoint  = "envoy_on_request"
	ResponseEntryPoint = "envoy_on_response"
)

// Program is a compiled script chunk. The compiled bytecode is shared;
// each worker gets its own WorkerRuntime built from it, never a shared
// interpreter state.
type Program struct {
	source string
	proto  *lua.FunctionProto
}

// Compile parses and compiles source. A compile error is fatal to
// configuration and includes the source location gopher-lua's parser
// reports.
func Compile(source string) (*Program, error) {
	chunk, err := parse.Parse(strings.NewReader(source), "inline_code")
	if err != nil {
		return nil, fmt.Errorf("lua-stream-filter: parse script: %w", err)
	}
	proto, err := lua.Compile(chunk, "inline_code")
	if err != nil {
		return nil, fmt.Errorf("lua-stream-filter: compile script: %w", err)
	}
	return &Program{source: source, proto: proto}, nil
}

// Source returns the original script text, for diagnostics.
func (p *Program) Source() string {
	return p.source
}

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

package config

import (
	"fmt"
	"runtime"

	udpa "github.com/cncf/xds/go/udpa/type/v1"
	"google.golang.org/protobuf/types/known/anypb"
)

// FilterConfig is everything the filter-factory constructor needs.
// InlineCode carries the script source itself; WorkerPoolSize is an
// ambient knob for how many per-worker script.WorkerRuntime slots the
// caller's factory should pre-allocate.
type FilterConfig struct {
	InlineCode     string
	WorkerPoolSize int
}

// ParseConfig unwraps the plugin config the same way configFactory
// (src/golang/factory.go) does: the registration Any carries a
// udpa.TypedStruct envelope, and the filter's own settings live in that
// envelope's Value, a structpb.Struct, read with AsMap() for
// "inline_code" and "worker_pool_size". File-based loading and richer
// schemas are not implemented.
func ParseConfig(any *anypb.Any) (*FilterConfig, error) {
	if any == nil {
		return nil, fmt.Errorf("lua-stream-filter: nil config")
	}

	var typed udpa.TypedStruct
	if err := any.UnmarshalTo(&typed); err != nil {
		return nil, fmt.Errorf("lua-stream-filter: parse config: %w", err)
	}
	if typed.Value == nil {
		return nil, fmt.Errorf("lua-stream-filter: config missing required inline_code")
	}

	m := typed.Value.AsMap()
	code, _ := m["inline_code"].(string)
	if code == "" {
		return nil, fmt.Errorf("lua-stream-filter: config missing required inline_code")
	}

	size := 0
	if v, ok := m["worker_pool_size"].(float64); ok {
		size = int(v)
	}
	if size <= 0 {
		size = runtime.NumCPU()
	}

	return &FilterConfig{InlineCode: code, WorkerPoolSize: size}, nil
}

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

// Command luafilterctl replays a canned JSON pipeline trace through one
// filter.Adapter, for exercising a script against headers/data/trailers
// sequences without a real proxy in front of it.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"mosn.io/lua-stream-filter/pkg/api"
	"mosn.io/lua-stream-filter/pkg/filter"
	"mosn.io/lua-stream-filter/pkg/logger"
	"mosn.io/lua-stream-filter/pkg/script"
)

type traceEvent struct {
	Direction string            `json:"direction"`
	Type      string            `json:"type"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	EndStream bool              `json:"end_stream,omitempty"`
}

type trace struct {
	InlineCode string       `json:"inline_code"`
	Events     []traceEvent `json:"events"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: luafilterctl <trace.json>")
		os.Exit(2)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "read trace:", err)
		os.Exit(1)
	}

	var tr trace
	if err := json.Unmarshal(data, &tr); err != nil {
		fmt.Fprintln(os.Stderr, "parse trace:", err)
		os.Exit(1)
	}

	program, err := script.Compile(tr.InlineCode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "compile script:", err)
		os.Exit(1)
	}

	runtime, err := program.NewWorkerRuntime()
	if err != nil {
		fmt.Fprintln(os.Stderr, "start runtime:", err)
		os.Exit(1)
	}
	defer runtime.Close()

	z, _ := zap.NewDevelopment()
	log := logger.New(z)

	cb := newCallbacks()
	adapter := filter.NewAdapter(runtime, log, cb)

	for _, ev := range tr.Events {
		cb.direction = ev.Direction
		dispatch(adapter, ev)
	}
}

func dispatch(adapter *filter.Adapter, ev traceEvent) {
	switch ev.Direction + "/" + ev.Type {
	case "request/headers":
		report("DecodeHeaders", adapter.DecodeHeaders(newHeaderMap(ev.Headers), ev.EndStream))
	case "request/data":
		report("DecodeData", adapter.DecodeData(newBuffer(ev.Body), ev.EndStream))
	case "request/trailers":
		report("DecodeTrailers", adapter.DecodeTrailers(newHeaderMap(ev.Headers)))
	case "response/headers":
		report("EncodeHeaders", adapter.EncodeHeaders(newHeaderMap(ev.Headers), ev.EndStream))
	case "response/data":
		report("EncodeData", adapter.EncodeData(newBuffer(ev.Body), ev.EndStream))
	case "response/trailers":
		report("EncodeTrailers", adapter.EncodeTrailers(newHeaderMap(ev.Headers)))
	default:
		fmt.Fprintf(os.Stderr, "unknown event %s/%s\n", ev.Direction, ev.Type)
	}
}

func report(name string, status api.StatusType) {
	fmt.Printf("%s -> %d\n", name, status)
}

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

// Package headers_echo is the headers-only sample: the script reads one
// header and logs it, never touching body or trailers.
package headers_echo

import (
	"google.golang.org/protobuf/types/known/anypb"

	"mosn.io/lua-stream-filter/pkg/api"
	luaconfig "mosn.io/lua-stream-filter/pkg/config"
	"mosn.io/lua-stream-filter/pkg/filter"
	"mosn.io/lua-stream-filter/pkg/logger"
	"mosn.io/lua-stream-filter/pkg/script"
)

// defaultScript runs when the config carries no inline_code, so this
// sample works standalone.
const defaultScript = `
function envoy_on_request(handle)
    handle:log(2, handle:headers():get(":path"))
end
`

// ConfigFactory builds an api.HttpFilterFactory running either the
// registered config's inline_code or defaultScript. config arrives as
// the raw *anypb.Any the registration point hands every factory; nil or
// unparseable config falls back to defaultScript rather than failing
// the whole filter chain.
func ConfigFactory(config interface{}) api.HttpFilterFactory {
	source := defaultScript
	if any, ok := config.(*anypb.Any); ok {
		if cfg, err := luaconfig.ParseConfig(any); err == nil {
			source = cfg.InlineCode
		}
	}

	program, err := script.Compile(source)
	if err != nil {
		return nil
	}
	runtime, err := program.NewWorkerRuntime()
	if err != nil {
		return nil
	}

	return filter.NewFilterFactory(runtime, logger.New(nil))
}

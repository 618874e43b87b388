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
	"testing"

	udpa "github.com/cncf/xds/go/udpa/type/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func newConfigAny(t *testing.T, fields map[string]interface{}) *anypb.Any {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	any, err := anypb.New(&udpa.TypedStruct{Value: s})
	require.NoError(t, err)
	return any
}

func TestParseConfigReadsInlineCode(t *testing.T) {
	cfg, err := ParseConfig(newConfigAny(t, map[string]interface{}{
		"inline_code": "function envoy_on_request(handle) end",
	}))
	require.NoError(t, err)
	assert.Equal(t, "function envoy_on_request(handle) end", cfg.InlineCode)
	assert.Greater(t, cfg.WorkerPoolSize, 0)
}

func TestParseConfigReadsWorkerPoolSize(t *testing.T) {
	cfg, err := ParseConfig(newConfigAny(t, map[string]interface{}{
		"inline_code":      "function envoy_on_request(handle) end",
		"worker_pool_size": float64(4),
	}))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.WorkerPoolSize)
}

func TestParseConfigNilAny(t *testing.T) {
	_, err := ParseConfig(nil)
	assert.Error(t, err)
}

func TestParseConfigMissingInlineCode(t *testing.T) {
	_, err := ParseConfig(newConfigAny(t, map[string]interface{}{
		"worker_pool_size": float64(2),
	}))
	assert.Error(t, err)
}

func TestParseConfigNotATypedStruct(t *testing.T) {
	// Any wrapping a message udpa.TypedStruct cannot unmarshal into,
	// e.g. the config's own FilterConfig-shaped structpb.Struct with no
	// envelope at all, surfaces as an UnmarshalTo type mismatch.
	s, err := structpb.NewStruct(map[string]interface{}{"inline_code": "x"})
	require.NoError(t, err)
	any, err := anypb.New(s)
	require.NoError(t, err)

	_, err = ParseConfig(any)
	assert.Error(t, err)
}

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

package script

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerRuntimeResolvesEntryPoints(t *testing.T) {
	p, err := Compile(`
		function envoy_on_request(handle) end
	`)
	require.NoError(t, err)

	wr, err := p.NewWorkerRuntime()
	require.NoError(t, err)
	defer wr.Close()

	assert.True(t, wr.HasRequestEntryPoint())
	assert.False(t, wr.HasResponseEntryPoint())
	assert.NotNil(t, wr.RequestEntry())
	assert.Nil(t, wr.ResponseEntry())
}

func TestWorkerRuntimeGlobalsAreIndependentPerWorker(t *testing.T) {
	p, err := Compile(`
		counter = 0
		function envoy_on_request(handle)
			counter = counter + 1
		end
	`)
	require.NoError(t, err)

	wr1, err := p.NewWorkerRuntime()
	require.NoError(t, err)
	defer wr1.Close()

	wr2, err := p.NewWorkerRuntime()
	require.NoError(t, err)
	defer wr2.Close()

	co := wr1.NewCoroutine(wr1.RequestEntry())
	_, dead, err := co.Resume(lua.LNil)
	require.NoError(t, err)
	assert.True(t, dead)

	assert.Equal(t, lua.LNumber(1), wr1.L.GetGlobal("counter"))
	assert.Equal(t, lua.LNumber(0), wr2.L.GetGlobal("counter"))
}

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

package wrapper

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuffer struct {
	data []byte
}

func (b *fakeBuffer) Length() int   { return len(b.data) }
func (b *fakeBuffer) Bytes() []byte { return b.data }

func TestBufferByteSize(t *testing.T) {
	guard := NewGuard()
	guard.SetLive(true)
	b := NewBuffer(guard, &fakeBuffer{data: []byte("hello")})

	size, err := b.ByteSize()
	require.NoError(t, err)
	assert.Equal(t, 5, size)
}

func TestBufferDeadHandleFails(t *testing.T) {
	guard := NewGuard()
	b := NewBuffer(guard, &fakeBuffer{data: []byte("hello")})

	_, err := b.ByteSize()
	assert.ErrorIs(t, err, ErrDeadHandle)
}

func TestBufferValueColonCall(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	L.OpenLibs()

	guard := NewGuard()
	guard.SetLive(true)
	_, value := NewBufferValue(L, guard, &fakeBuffer{data: []byte("hello")})
	L.SetGlobal("buf", value)

	require.NoError(t, L.DoString(`result = buf:byteSize()`))
	assert.Equal(t, lua.LNumber(5), L.GetGlobal("result"))
}

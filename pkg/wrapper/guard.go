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

// Package wrapper implements the script-visible HeaderMap and Buffer
// objects: native-backed values that mediate access to api.HeaderMap
// and api.BufferInstance, subject to the handle-scope guard.
package wrapper

import "errors"

// ErrDeadHandle is the fixed message returned by any method on a
// wrapper whose owning StreamHandle's native frame is no longer live;
// scripts that retain a handle or a value derived from it past its
// frame get this error instead of undefined behavior.
var ErrDeadHandle = errors.New("object used outside of proper scope")

// Guard is the liveness flag a StreamHandle shares with every wrapper it
// creates. Scripts hold opaque table tokens; native code validates the
// token's guard on every call rather than exposing a raw pointer whose
// lifetime the script could outlive.
//
// Modeled on leafo-golapis's registry.go live-lookup-map pattern,
// collapsed to a single boxed flag per StreamHandle since every wrapper
// born under one handle shares the same live window.
type Guard struct {
	live bool
}

// NewGuard returns a guard that starts dead; the owning StreamHandle
// flips it live for the duration of each native dispatch.
func NewGuard() *Guard {
	return &Guard{}
}

// SetLive marks every wrapper registered against this guard live or
// dead in one step.
func (g *Guard) SetLive(live bool) {
	g.live = live
}

// IsLive reports the current liveness.
func (g *Guard) IsLive() bool {
	return g.live
}

// Check returns ErrDeadHandle if the guard is not currently live.
func (g *Guard) Check() error {
	if !g.live {
		return ErrDeadHandle
	}
	return nil
}

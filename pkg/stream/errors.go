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

package stream

import "errors"

// ErrUnsolicitedYield is the fixed message for a coroutine that yields
// without going through one of the handle's own blocking methods (the
// script called the raw coroutine.yield() global itself).
var ErrUnsolicitedYield = errors.New("script performed an unexpected yield")

// ContractViolation is the panic value for a proxy-side violation of a
// Handle's call protocol — an event delivered before headers, or while
// the handle isn't actually waiting for one. This is not a script bug;
// it is the host misusing the API, so it is kept distinct from ordinary
// script errors and is not meant to be recovered into a log-and-continue
// outcome.
type ContractViolation string

func (e ContractViolation) Error() string { return string(e) }

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

package logger

import "go.uber.org/zap"

// Level is the script-facing log level, passed through faithfully to the
// underlying zap logger instead of being collapsed onto a single level.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
)

func (l Level) clamp() Level {
	if l < LevelTrace {
		return LevelTrace
	}
	if l > LevelCritical {
		return LevelCritical
	}
	return l
}

// ScriptLogger is the collaborator the stream handle's log() method and
// the filter adapter's error-containment logging both go through.
type ScriptLogger struct {
	z *zap.Logger
}

// New wraps z. A nil z falls back to a no-op logger.
func New(z *zap.Logger) *ScriptLogger {
	if z == nil {
		z = zap.NewNop()
	}
	return &ScriptLogger{z: z}
}

// Log writes message at level, with fields attached for structured
// fields (stream direction, correlation id, source location) rather than
// being baked into the message string.
func (s *ScriptLogger) Log(level Level, message string, fields ...zap.Field) {
	switch level.clamp() {
	case LevelTrace, LevelDebug:
		s.z.Debug(message, fields...)
	case LevelInfo:
		s.z.Info(message, fields...)
	case LevelWarn:
		s.z.Warn(message, fields...)
	case LevelError:
		s.z.Error(message, fields...)
	case LevelCritical:
		s.z.DPanic(message, fields...)
	}
}

// With returns a ScriptLogger whose Log calls carry the given fields in
// addition to any passed at the call site.
func (s *ScriptLogger) With(fields ...zap.Field) *ScriptLogger {
	return &ScriptLogger{z: s.z.With(fields...)}
}

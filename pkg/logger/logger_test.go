/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
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

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDebugOverridesLevel(t *testing.T) {
	l, err := New(&Config{Level: "warn", Debug: true, Output: "stdout"})
	require.NoError(t, err)

	zl, ok := l.(*zeroLogger)
	require.True(t, ok)
	assert.Equal(t, zerolog.DebugLevel, zl.GetLevel())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewNilConfigUsesDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DEBUG", "")

	l, err := New(nil)
	require.NoError(t, err)

	zl, ok := l.(*zeroLogger)
	require.True(t, ok)
	assert.Equal(t, zerolog.ErrorLevel, zl.GetLevel())
}

func TestSetDebug(t *testing.T) {
	l, err := New(&Config{Level: "info"})
	require.NoError(t, err)

	zl := l.(*zeroLogger)

	l.SetDebug(true)
	assert.Equal(t, zerolog.DebugLevel, zl.GetLevel())

	l.SetDebug(false)
	assert.Equal(t, zerolog.InfoLevel, zl.GetLevel())
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer

	l := FromZerolog(zerolog.New(&buf))
	componentLogger := l.WithComponent("capture")
	componentLogger.Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "capture", entry["component"])
	assert.Equal(t, "hello", entry["message"])
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer

	l := FromZerolog(zerolog.New(&buf))
	enriched := l.WithFields(map[string]interface{}{"host": "10.0.0.1:80", "cycle": 3})
	enriched.Warn().Msg("timeout")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "10.0.0.1:80", entry["host"])
	assert.EqualValues(t, 3, entry["cycle"])
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Level == "" {
		t.Error("Default config should have a level set")
	}

	if config.Output == "" {
		t.Error("Default config should have an output set")
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("PW_TEST_BOOL", "Yes")
	assert.True(t, getEnvBoolOrDefault("PW_TEST_BOOL", false))

	t.Setenv("PW_TEST_BOOL", "off")
	assert.False(t, getEnvBoolOrDefault("PW_TEST_BOOL", true))
}

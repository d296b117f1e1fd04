package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTextFormatter(t *testing.T) {
	f := NewTextFormatter()
	entry := &LogEntry{
		Time:     time.Now(),
		Level:    LogLevelInfo,
		Category: "Test",
		Message:  "Hello",
		Fields:   []Field{{Key: "key", Value: "val"}},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	str := string(out)
	assert.Contains(t, str, "INFO")
	assert.Contains(t, str, "[Test]")
	assert.Contains(t, str, "Hello")
	assert.Contains(t, str, "key=val")
	assert.True(t, strings.HasSuffix(str, "\n"))
}

func TestJsonFormatter(t *testing.T) {
	f := NewJsonFormatter()
	entry := &LogEntry{
		Time:    time.Now(),
		Level:   LogLevelWarn,
		Message: "bean failed",
		Fields:  []Field{F("bean", "repo"), F("error", errors.New("boom"))},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	var data map[string]any
	require.NoError(t, json.Unmarshal(out, &data))
	assert.Equal(t, "WARN", data["level"])
	assert.Equal(t, "bean failed", data["msg"])
	assert.Equal(t, "repo", data["bean"])
	assert.Equal(t, "boom", data["error"])
}

func TestFactoryMinimumLevel(t *testing.T) {
	var buf bytes.Buffer
	factory := NewLoggingBuilder().
		SetMinimumLevel(LogLevelWarn).
		AddConsole(ConsoleLoggerOptions{Output: &buf}).
		Build()

	logger := factory.CreateLogger("ioc")
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	// 工厂级别调整对已创建的 Logger 生效
	factory.SetMinimumLevel(LogLevelDebug)
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestWithFieldsDoesNotShareBacking(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggingBuilder().
		AddConsole(ConsoleLoggerOptions{Output: &buf}).
		Build().
		CreateLogger("ioc").
		WithFields(F("a", 1))

	l1 := base.WithFields(F("b", 2))
	l2 := base.WithFields(F("c", 3))
	l1.Info("first")
	l2.Info("second")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "b=2")
	assert.NotContains(t, lines[0], "c=3")
	assert.Contains(t, lines[1], "c=3")
	assert.NotContains(t, lines[1], "b=2")
}

func TestZapProvider(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	factory := NewLoggingBuilder().
		SetMinimumLevel(LogLevelDebug).
		AddZap(zap.New(core)).
		Build()

	factory.CreateLogger("ioc").Debug("bean created", F("bean", "greeter"), F("scope", "singleton"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bean created", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "ioc", ctx["category"])
	assert.Equal(t, "greeter", ctx["bean"])
}

func TestFatalExits(t *testing.T) {
	var code int
	orig := exitFunc
	exitFunc = func(c int) { code = c }
	defer func() { exitFunc = orig }()

	var buf bytes.Buffer
	logger := NewLoggingBuilder().AddConsole(ConsoleLoggerOptions{Output: &buf}).Build().CreateLogger("x")
	logger.Fatal("stop")
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "FATAL")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("debug"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelInfo, ParseLevel("nonsense"))
}

package logging

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelStringRoundTrip(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(level))
		require.NoError(t, err)
		assert.Equal(t, level, parsed)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestTypedTextRedacted(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: LevelDebug, Format: FormatJSON, Component: "test"})

	l.Info("commit", "text", "hunter2", "preedit", "abc", "scan_code", 12)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, Redacted, entry["text"])
	assert.Equal(t, Redacted, entry["preedit"])
	assert.EqualValues(t, 12, entry["scan_code"])
	assert.Equal(t, "test", entry["component"])
}

func TestLogTextDisablesRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: LevelInfo, LogText: true})

	l.Info("commit", "text", "visible")
	assert.Contains(t, buf.String(), "text=visible")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: LevelWarn})

	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetLevelAppliesToDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: LevelWarn})
	child := l.WithSubsystem("ime").With("engine", 1)

	child.Debug("before")
	l.SetLevel(LevelDebug)
	child.Debug("after")

	assert.Equal(t, LevelDebug, l.Level())
	assert.NotContains(t, buf.String(), "before")
	assert.Contains(t, buf.String(), "after")
}

func TestGroupedTextRedacted(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: LevelInfo})

	l.Info("route", slog.Group("event", "text", "secret", "scan_code", 4))
	assert.Contains(t, buf.String(), "event.text="+Redacted)
	assert.NotContains(t, buf.String(), "secret")
}

func TestWithSubsystemKeepsSingleComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: LevelInfo, Component: "gureum-ibus"}).WithSubsystem("capslock")

	l.Info("hello")
	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "component="))
	assert.Contains(t, out, "component=gureum-ibus")
	assert.Contains(t, out, "subsystem=capslock")
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gureum.log")
	l, err := New(&Config{Level: LevelInfo, Output: "file", FilePath: path})
	require.NoError(t, err)

	l.Info("written")
	require.NoError(t, l.Sync())
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written")
}

func TestRotatorRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gureum.log")
	r, err := NewFileRotator(&Config{FilePath: path, MaxSize: 1, MaxBackups: 5, Compress: true})
	require.NoError(t, err)
	defer r.Close()

	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	r.now = func() time.Time { clock = clock.Add(time.Millisecond); return clock }
	r.opened = clock

	chunk := []byte(strings.Repeat("x", 600*1024))
	_, err = r.Write(chunk)
	require.NoError(t, err)
	_, err = r.Write(chunk)
	require.NoError(t, err)

	backups := r.Backups()
	require.Len(t, backups, 1)
	assert.True(t, strings.HasSuffix(backups[0], ".log.gz"), backups[0])

	f, err := os.Open(backups[0])
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Len(t, data, len(chunk))
}

func TestRotatorRotatesOnNewDay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gureum.log")
	r, err := NewFileRotator(&Config{FilePath: path, MaxSize: 100, MaxBackups: 5})
	require.NoError(t, err)
	defer r.Close()

	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)
	r.now = func() time.Time { return day }
	r.opened = day

	_, err = r.Write([]byte("one\n"))
	require.NoError(t, err)

	day = day.Add(2 * time.Minute)
	_, err = r.Write([]byte("two\n"))
	require.NoError(t, err)

	assert.Len(t, r.Backups(), 1)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(data))
}

func TestRotatorPrunesBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gureum.log")
	r, err := NewFileRotator(&Config{FilePath: path, MaxSize: 100, MaxBackups: 2})
	require.NoError(t, err)
	defer r.Close()

	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	r.now = func() time.Time { return day }
	r.opened = day

	for i := 0; i < 5; i++ {
		day = day.AddDate(0, 0, 1)
		_, err := r.Write([]byte("line\n"))
		require.NoError(t, err)
	}
	assert.Len(t, r.Backups(), 2)
}

func TestWriteCrashReport(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteCrashReport(dir, "test", "boom")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var report CrashReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "boom", report.PanicValue)
	assert.Equal(t, "test", report.Component)
	assert.NotEmpty(t, report.StackTrace)
}

func TestRepanicWithReport(t *testing.T) {
	dir := t.TempDir()
	assert.PanicsWithValue(t, "fatal", func() {
		defer RepanicWithReport(dir, "test")
		panic("fatal")
	})
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// useDefault installs a buffer-backed default logger for one test.
func useDefault(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Default()
	SetDefault(NewWithWriter(&buf, &Config{Level: level, Component: "test"}))
	t.Cleanup(func() { SetDefault(prev) })
	return &buf
}

func TestPackageHelpersUseDefault(t *testing.T) {
	buf := useDefault(t, LevelDebug)

	Debug("d")
	Info("i")
	Warn("w")
	Error("e", "text", "typed")

	out := buf.String()
	for _, want := range []string{"level=DEBUG msg=d", "level=INFO msg=i", "level=WARN msg=w", "level=ERROR msg=e"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, "text="+Redacted)
}

func TestRepanicWithReportLogsPanic(t *testing.T) {
	buf := useDefault(t, LevelInfo)
	dir := t.TempDir()

	recovered := func() (v any) {
		defer func() { v = recover() }()
		func() {
			defer RepanicWithReport(dir, "engine")
			panic("manager close failed")
		}()
		return nil
	}()

	assert.Equal(t, "manager close failed", recovered)
	assert.Contains(t, buf.String(), "level=ERROR msg=panic")
	assert.Contains(t, buf.String(), "crash-")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var report CrashReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "engine", report.Component)
}

func TestRepanicWithReportLogsWriteFailure(t *testing.T) {
	buf := useDefault(t, LevelInfo)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	assert.PanicsWithValue(t, "fatal", func() {
		defer RepanicWithReport(filepath.Join(blocker, "crashes"), "engine")
		panic("fatal")
	})
	assert.Contains(t, buf.String(), "crash report failed")
}

package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"
)

// CrashReport is written to disk when the process panics.
type CrashReport struct {
	Timestamp    time.Time `json:"timestamp"`
	Component    string    `json:"component"`
	GOOS         string    `json:"goos"`
	GOARCH       string    `json:"goarch"`
	NumGoroutine int       `json:"num_goroutine"`
	PanicValue   string    `json:"panic_value"`
	StackTrace   string    `json:"stack_trace"`
}

// DefaultCrashDir returns the directory next to the default log file.
func DefaultCrashDir() string {
	return filepath.Join(filepath.Dir(DefaultLogPath()), "crashes")
}

// WriteCrashReport records a panic value and the current stack in dir.
func WriteCrashReport(dir, component string, value any) (string, error) {
	report := CrashReport{
		Timestamp:    time.Now().UTC(),
		Component:    component,
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		NumGoroutine: runtime.NumGoroutine(),
		PanicValue:   fmt.Sprint(value),
		StackTrace:   string(debug.Stack()),
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}
	name := fmt.Sprintf("crash-%s.json", report.Timestamp.Format("20060102-150405.000"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

// RepanicWithReport is deferred by goroutine entry points. It logs and
// records a panic, then re-panics so logic-fatal conditions still abort.
func RepanicWithReport(dir, component string) {
	v := recover()
	if v == nil {
		return
	}
	path, err := WriteCrashReport(dir, component, v)
	if err != nil {
		Error("crash report failed", "error", err)
	} else {
		Error("panic", "value", fmt.Sprint(v), "report", path)
	}
	Default().Sync()
	panic(v)
}

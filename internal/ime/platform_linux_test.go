//go:build linux

package ime

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kballard/go-shellquote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlatform(t *testing.T) (*LinuxPlatform, *[]string) {
	t.Helper()
	cfg := DefaultPlatformConfig()
	cfg.ExecPath = "/opt/my tools/gureum-ibus"
	cfg.ExecArgs = []string{"--ibus", "--config", "/home/u/it's.toml"}
	cfg.ComponentDir = filepath.Join(t.TempDir(), "component")
	p := NewPlatform(cfg)
	var calls []string
	p.run = func(name string, args ...string) ([]byte, error) {
		calls = append(calls, strings.Join(append([]string{name}, args...), " "))
		if len(args) == 1 && args[0] == "engine" {
			return []byte("gureum\n"), nil
		}
		return nil, nil
	}
	return p, &calls
}

func TestExecLineRoundTrips(t *testing.T) {
	p, _ := testPlatform(t)
	words, err := shellquote.Split(p.ExecLine())
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/my tools/gureum-ibus", "--ibus", "--config", "/home/u/it's.toml"}, words)
}

func TestInstallWritesComponent(t *testing.T) {
	p, calls := testPlatform(t)
	assert.False(t, p.IsInstalled())

	require.NoError(t, p.Install())
	assert.True(t, p.IsInstalled())
	assert.Equal(t, []string{"ibus restart"}, *calls)

	data, err := os.ReadFile(p.componentPath())
	require.NoError(t, err)
	xmlText := string(data)
	assert.True(t, strings.HasPrefix(xmlText, "<?xml"))
	assert.Contains(t, xmlText, "<name>"+GureumBusName+"</name>")
	assert.Contains(t, xmlText, "<name>gureum</name>")
	assert.Contains(t, xmlText, "<layout>us</layout>")
	assert.Contains(t, xmlText, "gureum-ibus")

	require.NoError(t, p.Uninstall())
	assert.False(t, p.IsInstalled())
	require.NoError(t, p.Uninstall())
}

func TestInstallRequiresExec(t *testing.T) {
	p, _ := testPlatform(t)
	p.config.ExecPath = ""
	assert.Error(t, p.Install())
}

func TestIsActiveAndActivate(t *testing.T) {
	p, calls := testPlatform(t)
	assert.True(t, p.IsActive())
	require.NoError(t, p.Activate())
	assert.Equal(t, "ibus engine gureum", (*calls)[1])

	p.run = func(string, ...string) ([]byte, error) { return nil, errors.New("no ibus") }
	assert.False(t, p.IsActive())
	assert.Error(t, p.Activate())
}

//go:build linux

package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"gureum/internal/composer"
	"gureum/internal/config"
	"gureum/internal/hid"
	"gureum/internal/ime"
	"gureum/internal/logging"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-c", "/tmp/x.toml", "-d", "--ibus", "--virtual-hid"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.configPath != "/tmp/x.toml" || !opts.debug || !opts.ibus || !opts.virtualHID {
		t.Errorf("unexpected options: %+v", opts)
	}
	if opts.install || opts.uninstall || opts.listDevices {
		t.Errorf("unexpected actions: %+v", opts)
	}

	if _, err := parseFlags([]string{"--help"}, io.Discard); !errors.Is(err, pflag.ErrHelp) {
		t.Errorf("--help: got %v, want ErrHelp", err)
	}
	if _, err := parseFlags([]string{"stray"}, io.Discard); err == nil {
		t.Error("positional argument accepted")
	}
	if _, err := parseFlags([]string{"--bogus"}, io.Discard); err == nil {
		t.Error("unknown flag accepted")
	}
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("GUREUM_CONFIG", "")
	chdir(t, t.TempDir())

	if got := resolveConfigPath("/explicit.toml"); got != "/explicit.toml" {
		t.Errorf("explicit path: got %s", got)
	}
	if got := resolveConfigPath(""); got != config.ConfigPath() {
		t.Errorf("default path: got %s, want %s", got, config.ConfigPath())
	}
}

func TestLoggingConfig(t *testing.T) {
	c := config.DefaultConfig().Logging

	out, err := loggingConfig(c, false)
	if err != nil {
		t.Fatalf("loggingConfig: %v", err)
	}
	if out.Level != logging.LevelInfo || out.Output != "file" || out.MaxSize != int64(c.MaxSizeMB) {
		t.Errorf("unexpected config: %+v", out)
	}
	if out.Component != component {
		t.Errorf("component = %q", out.Component)
	}

	out, err = loggingConfig(c, true)
	if err != nil {
		t.Fatalf("loggingConfig debug: %v", err)
	}
	if out.Level != logging.LevelDebug || out.Output != "both" || !out.AddSource {
		t.Errorf("debug config: %+v", out)
	}

	c.Level = "loud"
	if _, err := loggingConfig(c, false); err == nil {
		t.Error("bad level accepted")
	}
}

func TestHIDOpenerVirtual(t *testing.T) {
	opener, err := hidOpener(config.HIDConfig{Backend: "evdev"}, true, discard())
	if err != nil {
		t.Fatalf("hidOpener: %v", err)
	}
	if _, ok := opener.(*hid.Virtual); !ok {
		t.Errorf("got %T, want *hid.Virtual", opener)
	}

	opener, err = hidOpener(config.HIDConfig{Backend: "virtual"}, false, discard())
	if err != nil {
		t.Fatalf("hidOpener: %v", err)
	}
	if _, ok := opener.(*hid.Virtual); !ok {
		t.Errorf("backend virtual: got %T", opener)
	}

	if _, err := hidOpener(config.HIDConfig{Backend: "evdev", Bypass: "("}, false, discard()); err == nil {
		t.Error("invalid bypass pattern accepted")
	}
}

func TestLoadLexicon(t *testing.T) {
	dir := t.TempDir()
	if lex := loadLexicon("", discard()); lex != nil {
		t.Error("empty path should disable the dictionary")
	}
	if lex := loadLexicon(filepath.Join(dir, "missing.toml"), discard()); lex != nil {
		t.Error("missing file should disable the dictionary")
	}

	path := filepath.Join(dir, "dictionary.toml")
	if err := os.WriteFile(path, []byte(`brb = ["be right back"]`+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	lex := loadLexicon(path, discard())
	if lex == nil || lex.Len() != 1 {
		t.Fatalf("lexicon not loaded: %v", lex)
	}
}

func TestOpenUsageFallsBackToMemory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	s := openUsage(filepath.Join(blocker, "usage.db"), discard())
	if s == nil {
		t.Fatal("no usage store")
	}
	defer s.Close()
	if err := s.RecordSelection("brb", "be right back"); err != nil {
		t.Fatalf("RecordSelection: %v", err)
	}
}

func TestComposerFactory(t *testing.T) {
	cfg := config.DefaultConfig()

	plain := composerFactory(nil, nil, cfg, discard())()
	sw, ok := plain.(*composer.Switcher)
	if !ok {
		t.Fatalf("got %T, want *composer.Switcher", plain)
	}
	if sw.Active() != "roman" {
		t.Errorf("active = %s", sw.Active())
	}
	if sw.SetActive("dictionary") {
		t.Error("dictionary mode present without a lexicon")
	}

	lex := composer.NewLexicon(map[string][]string{"brb": {"be right back"}})
	usage := openUsage("", discard())
	defer usage.Close()
	newComposer := composerFactory(lex, usage, cfg, discard())
	a, b := newComposer(), newComposer()
	if a == b {
		t.Error("engines share a composer")
	}
	if !a.(*composer.Switcher).SetActive("dictionary") {
		t.Error("dictionary mode missing")
	}
}

func TestOptionKeysFromConfig(t *testing.T) {
	t.Setenv("GUREUM_OPTION_KEY_BEHAVIOR", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("version = 2\n[input]\noption_key_behavior = \"ignore\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	loader := config.NewLoader(path)
	defer loader.Close()
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := optionKeys(loader).OptionKeyBehavior(); got != ime.OptionKeyIgnore {
		t.Errorf("behavior = %v, want ignore", got)
	}
}

func TestListDevicesHeader(t *testing.T) {
	var buf bytes.Buffer
	code := listDevices(&buf, config.HIDConfig{Search: filepath.Join(t.TempDir(), "event*")}, discard())
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("PATH")) {
		t.Errorf("output = %q", buf.String())
	}
}

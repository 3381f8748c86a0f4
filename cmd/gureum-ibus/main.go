//go:build linux

// gureum-ibus is the IBus engine process. ibus-daemon launches it with
// --ibus from the installed component file.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"gureum/internal/config"
	"gureum/internal/hid"
	"gureum/internal/ime"
	"gureum/internal/logging"
)

const component = "gureum-ibus"

type options struct {
	configPath  string
	debug       bool
	ibus        bool
	install     bool
	uninstall   bool
	virtualHID  bool
	listDevices bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var o options
	fs := pflag.NewFlagSet(component, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&o.configPath, "config", "c", "", "configuration file")
	fs.BoolVarP(&o.debug, "debug", "d", false, "log at debug level to stderr")
	fs.BoolVar(&o.ibus, "ibus", false, "set by ibus-daemon when it launches the engine")
	fs.BoolVar(&o.install, "install", false, "install the IBus component and exit")
	fs.BoolVar(&o.uninstall, "uninstall", false, "remove the IBus component and exit")
	fs.BoolVar(&o.virtualHID, "virtual-hid", false, "use an in-memory keyboard instead of evdev")
	fs.BoolVar(&o.listDevices, "list-devices", false, "list input devices and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return &o, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", component, err)
		return 2
	}

	path := resolveConfigPath(opts.configPath)
	migration, err := config.MigrateFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: migrate config: %v\n", component, err)
		return 1
	}
	loader := config.NewLoader(path)
	defer loader.Close()
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", component, err)
		return 1
	}

	logCfg, err := loggingConfig(cfg.Logging, opts.debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", component, err)
		return 1
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: open log: %v\n", component, err)
		return 1
	}
	logging.SetDefault(logger)
	defer logger.Close()
	defer logging.RepanicWithReport(logging.DefaultCrashDir(), component)

	if migration != nil {
		logger.Info("migrated configuration",
			"path", path, "from", migration.FromVersion, "to", migration.ToVersion,
			"backup", migration.Backup, "changes", len(migration.Changes))
		for _, w := range migration.Warnings {
			logger.Warn("config migration", "warning", w)
		}
	}

	switch {
	case opts.install:
		return install(newPlatform(cfg, opts.configPath), logger.Logger)
	case opts.uninstall:
		if err := newPlatform(cfg, opts.configPath).Uninstall(); err != nil {
			logger.Error("uninstall failed", "error", err)
			return 1
		}
		return 0
	case opts.listDevices:
		return listDevices(os.Stdout, cfg.HID, logger.Logger)
	}

	d := &daemon{
		cfg:        cfg,
		loader:     loader,
		log:        logger,
		logger:     logger.Logger,
		virtualHID: opts.virtualHID,
		debug:      opts.debug,
	}
	if err := d.start(); err != nil {
		logger.Error("startup failed", "error", err)
		d.stop()
		return 1
	}
	if err := loader.Watch(); err != nil {
		logger.Warn("config watch unavailable", "path", path, "error", err)
	}
	d.wait()
	d.stop()
	return 0
}

func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if p := config.FindConfigFile(); p != "" {
		return p
	}
	return config.ConfigPath()
}

func loggingConfig(c config.LoggingConfig, debug bool) (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	out := &logging.Config{
		Level:      level,
		Format:     format,
		Output:     c.Output,
		FilePath:   c.FilePath,
		MaxSize:    int64(c.MaxSizeMB),
		MaxAge:     c.MaxAgeDays,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
		LogText:    c.LogText,
		Component:  component,
	}
	if debug {
		out.Level = logging.LevelDebug
		out.AddSource = true
		switch out.Output {
		case "file":
			out.Output = "both"
		case "stdout":
			out.Output = "stderr"
		}
	}
	return out, nil
}

func newPlatform(cfg *config.Config, configFlag string) *ime.LinuxPlatform {
	pc := ime.DefaultPlatformConfig()
	pc.ExecArgs = []string{"--ibus"}
	if configFlag != "" {
		pc.ExecArgs = append(pc.ExecArgs, "--config", configFlag)
	}
	if cfg.IBus.ComponentDir != "" {
		pc.ComponentDir = cfg.IBus.ComponentDir
	}
	return ime.NewPlatform(pc)
}

func install(p ime.Platform, logger *slog.Logger) int {
	if !p.Available() {
		logger.Error("ibus is not available")
		return 1
	}
	if err := p.Install(); err != nil {
		logger.Error("install failed", "error", err)
		return 1
	}
	if err := p.Activate(); err != nil {
		logger.Warn("installed but not activated", "error", err)
	}
	return 0
}

func listDevices(w io.Writer, c config.HIDConfig, logger *slog.Logger) int {
	disc, err := hid.NewDiscovery(c.Search, c.Bypass)
	if err != nil {
		logger.Error("device discovery", "error", err)
		return 1
	}
	devices, err := disc.All()
	if err != nil {
		logger.Error("device discovery", "error", err)
		return 1
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tNAME\tKEYBOARD\tCAPS LED\tUSED")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			d.Path, d.Name, yesNo(d.IsKeyboard()), yesNo(d.HasCapsLockLED()),
			yesNo(disc.Accept(d)))
	}
	if err := tw.Flush(); err != nil {
		return 1
	}
	return 0
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func waitForSignal(done <-chan struct{}) os.Signal {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	select {
	case sig := <-sigs:
		return sig
	case <-done:
		return nil
	}
}

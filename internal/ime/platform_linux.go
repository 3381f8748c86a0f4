//go:build linux

package ime

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"
)

const componentFile = "gureum.xml"

// LinuxPlatform registers the IBus component.
type LinuxPlatform struct {
	config PlatformConfig
	run    func(name string, args ...string) ([]byte, error)
}

// NewPlatform creates the IBus platform.
func NewPlatform(config PlatformConfig) *LinuxPlatform {
	return &LinuxPlatform{
		config: config,
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		},
	}
}

func (p *LinuxPlatform) Name() string {
	return "linux"
}

func (p *LinuxPlatform) Available() bool {
	if _, err := os.Stat("/usr/share/ibus/component"); err == nil {
		return true
	}
	_, err := exec.LookPath("ibus-daemon")
	return err == nil
}

func (p *LinuxPlatform) componentPath() string {
	return filepath.Join(p.config.ComponentDir, componentFile)
}

// ExecLine returns the shell-quoted launch command written to the component.
func (p *LinuxPlatform) ExecLine() string {
	return shellquote.Join(append([]string{p.config.ExecPath}, p.config.ExecArgs...)...)
}

func (p *LinuxPlatform) Install() error {
	if p.config.ExecPath == "" {
		return errors.New("ime: exec path required")
	}
	if err := os.MkdirAll(p.config.ComponentDir, 0o755); err != nil {
		return fmt.Errorf("create component dir: %w", err)
	}
	data, err := p.Component()
	if err != nil {
		return err
	}
	if err := os.WriteFile(p.componentPath(), data, 0o644); err != nil {
		return fmt.Errorf("write component: %w", err)
	}
	p.restartIBus()
	return nil
}

type ibusComponent struct {
	XMLName     xml.Name     `xml:"component"`
	Name        string       `xml:"name"`
	Description string       `xml:"description"`
	Exec        string       `xml:"exec"`
	Version     string       `xml:"version"`
	Author      string       `xml:"author"`
	License     string       `xml:"license"`
	Textdomain  string       `xml:"textdomain"`
	Engines     []ibusEngine `xml:"engines>engine"`
}

type ibusEngine struct {
	Name        string `xml:"name"`
	Language    string `xml:"language"`
	License     string `xml:"license"`
	Author      string `xml:"author"`
	Layout      string `xml:"layout"`
	LongName    string `xml:"longname"`
	Description string `xml:"description"`
	Rank        int    `xml:"rank"`
	Symbol      string `xml:"symbol"`
}

// Component renders the IBus component XML.
func (p *LinuxPlatform) Component() ([]byte, error) {
	c := ibusComponent{
		Name:        GureumBusName,
		Description: p.config.DisplayName + " Input Method",
		Exec:        p.ExecLine(),
		Version:     "1.0",
		Author:      "Gureum",
		License:     "BSD",
		Textdomain:  "gureum",
		Engines: []ibusEngine{{
			Name:        GureumEngineName,
			Language:    p.config.Language,
			License:     "BSD",
			Author:      "Gureum",
			Layout:      p.config.Layout,
			LongName:    p.config.DisplayName,
			Description: "Scan-code routed input method",
			Rank:        99,
			Symbol:      p.config.Symbol,
		}},
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "    ")
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode component: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (p *LinuxPlatform) restartIBus() {
	_, _ = p.run("ibus", "restart")
}

func (p *LinuxPlatform) Uninstall() error {
	if err := os.Remove(p.componentPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove component: %w", err)
	}
	p.restartIBus()
	return nil
}

func (p *LinuxPlatform) IsInstalled() bool {
	_, err := os.Stat(p.componentPath())
	return err == nil
}

func (p *LinuxPlatform) IsActive() bool {
	out, err := p.run("ibus", "engine")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == GureumEngineName
}

func (p *LinuxPlatform) Activate() error {
	if _, err := p.run("ibus", "engine", GureumEngineName); err != nil {
		return fmt.Errorf("select %s in your desktop's input source settings: %w", p.config.DisplayName, err)
	}
	return nil
}

var _ Platform = (*LinuxPlatform)(nil)

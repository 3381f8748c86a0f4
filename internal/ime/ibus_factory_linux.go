//go:build linux

package ime

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"gureum/internal/logging"
)

// busConn is the part of *dbus.Conn the factory needs.
type busConn interface {
	signalEmitter
	Export(v interface{}, path dbus.ObjectPath, iface string) error
}

// FactoryOptions configures a Factory.
type FactoryOptions struct {
	Server *Server
	Panel  *LookupPanel
	// NewComposer is called once per engine.
	NewComposer func() Composer
	// CapsLockToggles is read on every Caps Lock press; nil means the
	// press always toggles the input mode.
	CapsLockToggles func() bool
	Logger          *slog.Logger
}

// Factory implements org.freedesktop.IBus.Factory.
type Factory struct {
	conn        busConn
	server      *Server
	panel       *LookupPanel
	newComposer func() Composer
	toggles     func() bool
	logger      *slog.Logger

	route   sync.Mutex
	mu      sync.Mutex
	nextID  uint32
	engines map[dbus.ObjectPath]*Engine
}

// NewFactory returns a factory that exports engines on conn.
func NewFactory(conn busConn, opts FactoryOptions) (*Factory, error) {
	if opts.Server == nil || opts.Panel == nil || opts.NewComposer == nil {
		return nil, errors.New("ime: factory needs a server, a panel and a composer constructor")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default().Logger
	}
	return &Factory{
		conn:        conn,
		server:      opts.Server,
		panel:       opts.Panel,
		newComposer: opts.NewComposer,
		toggles:     opts.CapsLockToggles,
		logger:      logger.With(logging.SubsystemKey, "ibus"),
		engines:     make(map[dbus.ObjectPath]*Engine),
	}, nil
}

// CreateEngine creates a new engine instance for IBus.
func (f *Factory) CreateEngine(engineName string) (dbus.ObjectPath, *dbus.Error) {
	if engineName != GureumEngineName {
		return "", dbus.NewError("org.freedesktop.IBus.NoEngine",
			[]interface{}{"Unknown engine: " + engineName})
	}

	f.mu.Lock()
	f.nextID++
	path := dbus.ObjectPath(fmt.Sprintf("%s%d", IBusEngineBasePath, f.nextID))
	f.mu.Unlock()

	logger := f.logger.With("engine", string(path))
	composer := f.newComposer()
	client := &busClient{bus: f.conn, path: path, logger: logger}
	e := &Engine{
		path:     path,
		server:   f.server,
		panel:    f.panel,
		composer: composer,
		client:   client,
		ctrl:     NewController(composer, client),
		route:    &f.route,
		toggles:  f.toggles,
		release:  f.release,
		logger:   logger,
	}
	if err := f.conn.Export(e, path, IBusEngineInterface); err != nil {
		f.logger.Error("export engine failed", "path", path, "error", err)
		return "", dbus.MakeFailedError(err)
	}

	f.mu.Lock()
	f.engines[path] = e
	f.mu.Unlock()
	f.logger.Info("engine created", "path", path)
	return path, nil
}

// Destroy is called by IBus when the component is unloaded.
func (f *Factory) Destroy() *dbus.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for path := range f.engines {
		f.unexport(path)
	}
	return nil
}

// release forgets the engine at path after IBus destroyed it.
func (f *Factory) release(path dbus.ObjectPath) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.engines[path]; ok {
		f.unexport(path)
		f.logger.Info("engine destroyed", "path", path)
	}
}

// unexport must be called with f.mu held.
func (f *Factory) unexport(path dbus.ObjectPath) {
	if err := f.conn.Export(nil, path, IBusEngineInterface); err != nil {
		f.logger.Warn("unexport engine failed", "path", path, "error", err)
	}
	delete(f.engines, path)
}

// Engine returns the engine exported at path.
func (f *Factory) Engine(path dbus.ObjectPath) (*Engine, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.engines[path]
	return e, ok
}

// Publish exports the factory and claims busName when it is non-empty.
// IBus launches the component with --ibus and expects the name to be
// owned before it calls CreateEngine.
func Publish(conn *dbus.Conn, f *Factory, busName string) error {
	if err := conn.Export(f, IBusFactoryPath, IBusFactoryInterface); err != nil {
		return fmt.Errorf("export factory: %w", err)
	}
	if busName == "" {
		return nil
	}
	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", busName)
	}
	return nil
}

// ConnectIBus opens a private connection to the IBus daemon at address.
// An empty address falls back to the session bus.
func ConnectIBus(address string) (*dbus.Conn, error) {
	if address == "" {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return nil, fmt.Errorf("connect session bus: %w", err)
		}
		return conn, nil
	}
	conn, err := dbus.Connect(address)
	if err != nil {
		return nil, fmt.Errorf("connect ibus at %s: %w", address, err)
	}
	return conn, nil
}

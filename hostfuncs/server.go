package hostfuncs

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/ports"
	bridgelog "github.com/reglet-dev/modbridge/log"
)

// DefaultAPIConstraint accepts every module API version 1.x.
const DefaultAPIConstraint = "^1"

// DefaultMaxReplySize bounds the reply one command may write (16MB).
const DefaultMaxReplySize = 16 * 1024 * 1024

// MaxCallDepth bounds nested Call chains.
const MaxCallDepth = 16

var dataTypeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{9}$`)

// ModuleInfo is what the module announced during the handshake.
type ModuleInfo struct {
	Name       string
	Version    int
	APIVersion int
}

// CommandEntry is one registered command.
type CommandEntry struct {
	fn       ports.CommandFunc
	invoke   Invoker
	Name     string
	Flags    []string
	FirstKey int
	LastKey  int
	KeyStep  int
}

// HasFlag reports whether the command was registered with flag.
func (e *CommandEntry) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Subscription is one keyspace event subscription.
type Subscription struct {
	fn     ports.EventFunc
	Events entities.NotifyEvent
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	logger        *slog.Logger
	apiConstraint string
	middleware    []CommandMiddleware
	maxReplySize  int
}

// WithLogger sets the logger used for module log messages and diagnostics.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(c *serverConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAPIConstraint sets the semver constraint module API versions must
// satisfy, e.g. "^1" or ">= 1, < 3".
func WithAPIConstraint(constraint string) ServerOption {
	return func(c *serverConfig) {
		c.apiConstraint = constraint
	}
}

// WithMaxReplySize bounds the reply a single command may write.
func WithMaxReplySize(n int) ServerOption {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxReplySize = n
		}
	}
}

// WithCommandMiddleware wraps every registered command. Middleware executes
// in FIFO order (first added wraps outermost).
func WithCommandMiddleware(mw ...CommandMiddleware) ServerOption {
	return func(c *serverConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// Server is the host side of the module protocol. It implements ports.Host,
// so a module can be loaded against it directly.
type Server struct {
	cfg        serverConfig
	constraint *semver.Constraints

	mu        sync.RWMutex
	module    *ModuleInfo
	commands  map[string]*CommandEntry
	order     []string
	dataTypes []entities.DataType
	subs      []Subscription

	sessionsMu sync.RWMutex
	sessions   map[ports.CtxHandle]*Session
	strings    map[ports.StringHandle][]byte
	nextHandle atomic.Uint64
}

var _ ports.Host = (*Server)(nil)

// NewServer creates a Server. It fails when the API constraint does not parse.
func NewServer(opts ...ServerOption) (*Server, error) {
	cfg := serverConfig{
		logger:        slog.Default(),
		apiConstraint: DefaultAPIConstraint,
		maxReplySize:  DefaultMaxReplySize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	constraint, err := semver.NewConstraint(cfg.apiConstraint)
	if err != nil {
		return nil, fmt.Errorf("invalid API version constraint %q: %w", cfg.apiConstraint, err)
	}

	return &Server{
		cfg:        cfg,
		constraint: constraint,
		commands:   make(map[string]*CommandEntry),
		sessions:   make(map[ports.CtxHandle]*Session),
		strings:    make(map[ports.StringHandle][]byte),
	}, nil
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.cfg.logger
}

// CheckAPIVersion reports whether the server accepts apiVersion.
func (s *Server) CheckAPIVersion(apiVersion int) error {
	if apiVersion <= 0 {
		return fmt.Errorf("API version %d is not positive", apiVersion)
	}
	v, err := semver.NewVersion(fmt.Sprintf("%d.0.0", apiVersion))
	if err != nil {
		return err
	}
	if ok, errs := s.constraint.Validate(v); !ok {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("API version %d rejected: %s", apiVersion, strings.Join(msgs, "; "))
	}
	return nil
}

// Init performs the handshake. It succeeds once per Server until Reset.
func (s *Server) Init(ctx ports.CtxHandle, name entities.ModuleName, version, apiVersion int) entities.Status {
	if s.session(ctx) == nil {
		return entities.StatusErr
	}
	moduleName := name.String()
	if err := entities.ValidateModuleName(moduleName); err != nil {
		s.cfg.logger.Warn("handshake rejected", "error", err)
		return entities.StatusErr
	}
	if err := s.CheckAPIVersion(apiVersion); err != nil {
		s.cfg.logger.Warn("handshake rejected", "module", moduleName, "error", err)
		return entities.StatusErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.module != nil {
		s.cfg.logger.Warn("handshake rejected", "module", moduleName, "error", "a module is already loaded")
		return entities.StatusErr
	}
	s.module = &ModuleInfo{Name: moduleName, Version: version, APIVersion: apiVersion}
	s.cfg.logger.Debug("module handshake", "module", moduleName, "version", version, "api_version", apiVersion)
	return entities.StatusOK
}

// Module returns the handshake information, or nil before Init.
func (s *Server) Module() *ModuleInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.module == nil {
		return nil
	}
	info := *s.module
	return &info
}

// CreateCommand registers fn under name. Names are case-insensitive and
// must be unique; flags must come from the host vocabulary.
func (s *Server) CreateCommand(ctx ports.CtxHandle, name string, fn ports.CommandFunc, flags string, firstKey, lastKey, keyStep int) entities.Status {
	if err := s.createCommand(ctx, name, fn, flags, firstKey, lastKey, keyStep); err != nil {
		s.cfg.logger.Warn("command registration rejected", "command", name, "error", err)
		return entities.StatusErr
	}
	return entities.StatusOK
}

func (s *Server) createCommand(ctx ports.CtxHandle, name string, fn ports.CommandFunc, flags string, firstKey, lastKey, keyStep int) error {
	if s.session(ctx) == nil {
		return NewNoSessionError(uint64(ctx))
	}
	if fn == nil {
		return fmt.Errorf("nil command function")
	}
	if name == "" || strings.ContainsAny(name, " \t\r\n\x00") {
		return fmt.Errorf("invalid command name %q", name)
	}
	tokens, err := entities.ParseCommandFlags(flags)
	if err != nil {
		return err
	}
	if !entities.ValidKeySpec(firstKey, lastKey, keyStep) {
		return fmt.Errorf("invalid key spec %d %d %d", firstKey, lastKey, keyStep)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.module == nil {
		return fmt.Errorf("handshake has not completed")
	}
	key := strings.ToLower(name)
	if _, dup := s.commands[key]; dup {
		return fmt.Errorf("command %q already exists", name)
	}
	entry := &CommandEntry{
		fn:       fn,
		Name:     name,
		Flags:    tokens,
		FirstKey: firstKey,
		LastKey:  lastKey,
		KeyStep:  keyStep,
	}
	entry.invoke = chain(s.cfg.middleware, invokeTrampoline)
	s.commands[key] = entry
	s.order = append(s.order, key)
	return nil
}

// CreateDataType registers a custom data type.
func (s *Server) CreateDataType(ctx ports.CtxHandle, dt *entities.DataType) entities.Status {
	if err := s.createDataType(ctx, dt); err != nil {
		s.cfg.logger.Warn("data type registration rejected", "error", err)
		return entities.StatusErr
	}
	return entities.StatusOK
}

func (s *Server) createDataType(ctx ports.CtxHandle, dt *entities.DataType) error {
	if s.session(ctx) == nil {
		return NewNoSessionError(uint64(ctx))
	}
	if dt == nil {
		return fmt.Errorf("nil data type")
	}
	if !dataTypeNamePattern.MatchString(dt.Name) {
		return fmt.Errorf("data type name %q must be %d characters from [A-Za-z0-9_-]", dt.Name, entities.DataTypeNameLen)
	}
	if dt.EncodingVersion < 0 || dt.EncodingVersion > 1023 {
		return fmt.Errorf("data type %q: encoding version %d out of range", dt.Name, dt.EncodingVersion)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.module == nil {
		return fmt.Errorf("handshake has not completed")
	}
	for _, existing := range s.dataTypes {
		if existing.Name == dt.Name {
			return fmt.Errorf("data type %q already exists", dt.Name)
		}
	}
	s.dataTypes = append(s.dataTypes, *dt)
	return nil
}

// SubscribeToKeyspaceEvents subscribes fn to events.
func (s *Server) SubscribeToKeyspaceEvents(ctx ports.CtxHandle, events entities.NotifyEvent, fn ports.EventFunc) entities.Status {
	if s.session(ctx) == nil || fn == nil || events.IsEmpty() {
		return entities.StatusErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.module == nil {
		return entities.StatusErr
	}
	s.subs = append(s.subs, Subscription{Events: events, fn: fn})
	return entities.StatusOK
}

// Log writes a module log message through the server's logger.
func (s *Server) Log(ctx ports.CtxHandle, level, message string) {
	attrs := []any{"handle", uint64(ctx)}
	if m := s.Module(); m != nil {
		attrs = append(attrs, "module", m.Name)
	}
	s.cfg.logger.Log(s.SessionContext(ctx), bridgelog.SlogLevel(level), message, attrs...)
}

// Command returns the entry registered under name.
func (s *Server) Command(name string) (*CommandEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.commands[strings.ToLower(name)]
	return e, ok
}

// Commands returns the registered commands in registration order.
func (s *Server) Commands() []*CommandEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*CommandEntry, len(s.order))
	for i, key := range s.order {
		out[i] = s.commands[key]
	}
	return out
}

// Subscriptions returns the registered subscriptions in order.
func (s *Server) Subscriptions() []Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Subscription(nil), s.subs...)
}

// Manifest describes what the loaded module registered.
func (s *Server) Manifest() *entities.Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := &entities.Manifest{
		DataTypes: append([]entities.DataType(nil), s.dataTypes...),
		Commands:  make([]entities.CommandManifest, 0, len(s.order)),
	}
	if s.module != nil {
		m.Name = s.module.Name
		m.Version = s.module.Version
		m.APIVersion = s.module.APIVersion
	}
	for _, key := range s.order {
		e := s.commands[key]
		m.Commands = append(m.Commands, entities.CommandManifest{
			Name:     e.Name,
			Flags:    strings.Join(e.Flags, " "),
			FirstKey: e.FirstKey,
			LastKey:  e.LastKey,
			KeyStep:  e.KeyStep,
		})
	}
	for _, sub := range s.subs {
		m.Subscriptions = append(m.Subscriptions, entities.SubscriptionManifest{Events: sub.Events.Names()})
	}
	return m
}

// Reset forgets the loaded module and everything it registered. Call it
// after the module unloads or fails to load.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.module = nil
	s.commands = make(map[string]*CommandEntry)
	s.order = nil
	s.dataTypes = nil
	s.subs = nil
}

package host

import (
	"context"

	"github.com/samber/oops"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/modbridge/domain/entities"
	hosterrors "github.com/reglet-dev/modbridge/errors"
	wazeroadapter "github.com/reglet-dev/modbridge/infrastructure/wazero"
)

// Instance is a loaded module.
type Instance struct {
	exec     *Executor
	mod      api.Module
	compiled wazero.CompiledModule
	name     string
	unloaded bool
}

// Name returns the name the module announced in its handshake.
func (i *Instance) Name() string {
	return i.name
}

// Manifest describes what the module registered.
func (i *Instance) Manifest() *entities.Manifest {
	return i.exec.server.Manifest()
}

func (i *Instance) context(ctx context.Context) context.Context {
	return wazeroadapter.WithModuleName(ctx, i.name)
}

// onLoad runs the module's load entry point. The executor lock is held.
func (i *Instance) onLoad(ctx context.Context, args []string) error {
	s := i.exec.server
	sess := s.Begin(ctx, "load")
	defer s.End(sess)

	raw := make([][]byte, len(args))
	for n, a := range args {
		raw[n] = []byte(a)
	}

	errb := oops.In("host").Code(hosterrors.CodeLoadFailed)
	st, err := wazeroadapter.CallOnLoad(s.SessionContext(sess.Handle()), i.mod, sess.Handle(), raw)
	if err != nil {
		return errb.Wrapf(err, "module load entry point failed")
	}
	if !st.OK() {
		return errb.With("status", st.String()).Errorf("module rejected load")
	}
	info := s.Module()
	if info == nil {
		return errb.Errorf("module loaded without a handshake")
	}
	i.name = info.Name
	i.exec.logger.InfoContext(ctx, "module loaded",
		"module", info.Name,
		"version", info.Version,
		"commands", len(s.Commands()),
	)
	return nil
}

func (i *Instance) check() error {
	if i.unloaded || i.exec.loaded != i {
		return oops.In("host").Code(hosterrors.CodeNotLoaded).With("module", i.name).Errorf("module is not loaded")
	}
	return nil
}

// Call runs command with args as a client would. Error replies are
// returned as *errors.ReplyError.
func (i *Instance) Call(ctx context.Context, command string, args ...string) (entities.Value, error) {
	i.exec.mu.Lock()
	defer i.exec.mu.Unlock()
	if err := i.check(); err != nil {
		return nil, err
	}

	argv := make([]string, 0, len(args)+1)
	argv = append(argv, command)
	argv = append(argv, args...)
	return i.exec.server.Execute(i.context(ctx), argv...)
}

// Notify raises a keyspace event and returns the number of subscriptions
// it was delivered to.
func (i *Instance) Notify(ctx context.Context, code int32, event, key string) (int, error) {
	i.exec.mu.Lock()
	defer i.exec.mu.Unlock()
	if err := i.check(); err != nil {
		return 0, err
	}

	delivered, err := i.exec.server.Notify(i.context(ctx), code, event, key)
	if i.exec.metrics != nil {
		i.exec.metrics.recordEvents(event, delivered)
	}
	return delivered, err
}

// Unload runs the module's unload entry point, then forgets its
// registrations and closes it whatever the entry point reported.
func (i *Instance) Unload(ctx context.Context) error {
	i.exec.mu.Lock()
	defer i.exec.mu.Unlock()
	if err := i.check(); err != nil {
		return err
	}

	s := i.exec.server
	sess := s.Begin(i.context(ctx), "unload")
	st, callErr := wazeroadapter.CallOnUnload(s.SessionContext(sess.Handle()), i.mod, sess.Handle())
	s.End(sess)

	s.Reset()
	i.unloaded = true
	i.exec.loaded = nil
	closeErr := i.mod.Close(ctx)
	_ = i.compiled.Close(ctx)

	errb := oops.In("host").Code(hosterrors.CodeUnloadFailed).With("module", i.name)
	switch {
	case callErr != nil:
		return errb.Wrapf(callErr, "module unload entry point failed")
	case !st.OK():
		return errb.Errorf("module reported unload failure")
	case closeErr != nil:
		return errb.Wrapf(closeErr, "failed to close module")
	}
	i.exec.logger.InfoContext(ctx, "module unloaded", "module", i.name)
	return nil
}

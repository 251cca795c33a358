package core

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/inkwell-ai/inkwell/internal/config"
)

var (
	// ErrNotInitialized is returned by Default before Init succeeds.
	ErrNotInitialized = errors.New("runtime not initialized")

	// ErrAlreadyInitialized is returned by a second Init call.
	ErrAlreadyInitialized = errors.New("runtime already initialized")
)

var (
	defaultMu sync.Mutex
	defaultRT *Runtime
)

// Init builds and starts the process-wide default runtime. Callers
// that want multiple independent runtimes use NewRuntime directly and
// skip this.
func Init(cfg config.Config, log *slog.Logger) (*Runtime, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRT != nil {
		return nil, ErrAlreadyInitialized
	}

	rt := NewRuntime(cfg, log)
	rt.Start()
	defaultRT = rt

	return rt, nil
}

// Default returns the runtime installed by Init.
func Default() (*Runtime, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRT == nil {
		return nil, ErrNotInitialized
	}

	return defaultRT, nil
}

// Deinit stops and uninstalls the default runtime. A process that
// never called Init gets a no-op.
func Deinit() {
	defaultMu.Lock()
	rt := defaultRT
	defaultRT = nil
	defaultMu.Unlock()

	if rt != nil {
		rt.Stop()
	}
}

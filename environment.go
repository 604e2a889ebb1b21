package emdisk

import (
	"sync"

	"github.com/behrlich/go-emdisk/internal/logging"
)

// Environment bundles the per-process collaborators that a naive port
// would otherwise keep as package-level singletons (block_manager,
// stats, config). Callers construct one Environment at startup and
// thread it through container constructors explicitly.
//
// Manager and Cache are declared as `any` here (rather than
// *block.Manager and *cache.Cache) to avoid a root-package import
// cycle: block and cache both depend on emdisk's error taxonomy, so
// emdisk cannot import them back. Higher packages (stream, extsort,
// pqueue) that need the concrete types type-assert Manager/Cache
// themselves; simple callers that only need Stats and Logger can leave
// both nil.
type Environment struct {
	Manager any
	Cache   any
	Stats   *Stats
	Logger  *logging.Logger
}

// NewEnvironment constructs an Environment with fresh Stats and the
// given logger (or the package default logger if nil).
func NewEnvironment(manager any, logger *logging.Logger) *Environment {
	if logger == nil {
		logger = logging.Default()
	}
	return &Environment{
		Manager: manager,
		Stats:   NewStats(),
		Logger:  logger,
	}
}

// WithCache returns a copy of env with Cache set, for callers that
// construct their block.Manager and cache.Cache together at startup.
func (env *Environment) WithCache(cache any) *Environment {
	cp := *env
	cp.Cache = cache
	return &cp
}

var (
	defaultEnv     *Environment
	defaultEnvOnce sync.Once
)

// Default lazily builds a process-wide Environment for simple callers
// that do not need an explicit block.Manager, mirroring the way
// logging.Default() provides a convenience logger alongside explicit
// ones.
func Default() *Environment {
	defaultEnvOnce.Do(func() {
		defaultEnv = NewEnvironment(nil, logging.Default())
	})
	return defaultEnv
}

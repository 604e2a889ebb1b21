package emdisk

import "os"

// OpenFlags is the closed set of backend open-mode flags.
type OpenFlags uint32

const (
	ReadOnly OpenFlags = 1 << iota
	WriteOnly
	ReadWrite
	Create
	Truncate
	Direct        // best-effort O_DIRECT; falls back to buffered I/O with a warning
	Sync          // request synchronous durability semantics
	RequireDirect // fail open() rather than silently falling back from Direct
	NoLock        // skip the advisory file lock a backend would otherwise take
)

// Has reports whether all of want's bits are set in f.
func (f OpenFlags) Has(want OpenFlags) bool {
	return f&want == want
}

// BackendKind selects which C1 file backend implementation to open.
type BackendKind int

const (
	KindSync BackendKind = iota
	KindAsyncURing
	KindMmap
	KindMem
	KindWBTL
)

// IOBackend mirrors BackendKind in the shape a DiskConfig is populated
// with (a string, the way a config file would name it), decoupling the
// config struct from the file package's Go types.
type IOBackend string

const (
	IOBackendSync  IOBackend = "sync"
	IOBackendURing IOBackend = "uring"
	IOBackendMmap  IOBackend = "mmap"
	IOBackendMem   IOBackend = "mem"
	IOBackendWBTL  IOBackend = "wbtl"
)

// DiskConfig describes one backing file the block manager should open.
type DiskConfig struct {
	Path      string
	SizeBytes int64
	IOBackend IOBackend
	Flags     OpenFlags
	Autogrow  bool
	QueueID   int // 0 means "derive from path/inode"
}

// ConfigPathEnvVar is the environment variable a caller may use to tell
// itself (not the core) where a DiskConfig-producing config file lives.
// The core only reads the variable to resolve a path; it never parses
// the file at that path — parsing config files is explicitly a
// caller concern.
const ConfigPathEnvVar = "EMDISK_CONFIG"

// ConfigPath returns the value of ConfigPathEnvVar, or "" if unset.
func ConfigPath() string {
	return os.Getenv(ConfigPathEnvVar)
}

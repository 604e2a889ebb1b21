package file

import emdisk "github.com/behrlich/go-emdisk"

// Open dispatches on cfg.IOBackend to construct the concrete Backend a
// DiskConfig names, so callers building a Manager from a slice of
// DiskConfig never need a type switch of their own.
func Open(cfg emdisk.DiskConfig) (Backend, error) {
	switch cfg.IOBackend {
	case emdisk.IOBackendMem:
		size := cfg.SizeBytes
		return NewMemFile(size), nil

	case emdisk.IOBackendSync, "":
		f, err := OpenSyncFile(SyncFileConfig{Path: cfg.Path, Flags: cfg.Flags | emdisk.Create})
		if err != nil {
			return nil, err
		}
		if cfg.SizeBytes > f.Size() {
			if err := f.SetSize(cfg.SizeBytes); err != nil {
				f.Close()
				return nil, err
			}
		}
		return f, nil

	case emdisk.IOBackendURing:
		f, err := OpenAsyncFile(AsyncFileConfig{Path: cfg.Path, Flags: cfg.Flags | emdisk.Create})
		if err != nil {
			return nil, err
		}
		if cfg.SizeBytes > f.Size() {
			if err := f.SetSize(cfg.SizeBytes); err != nil {
				f.Close()
				return nil, err
			}
		}
		return f, nil

	case emdisk.IOBackendMmap:
		f, err := OpenMmapFile(SyncFileConfig{Path: cfg.Path, Flags: cfg.Flags | emdisk.Create})
		if err != nil {
			return nil, err
		}
		if cfg.SizeBytes > f.Size() {
			if err := f.SetSize(cfg.SizeBytes); err != nil {
				f.Close()
				return nil, err
			}
		}
		return f, nil

	case emdisk.IOBackendWBTL:
		storage, err := OpenSyncFile(SyncFileConfig{Path: cfg.Path, Flags: cfg.Flags | emdisk.Create})
		if err != nil {
			return nil, err
		}
		w := NewWBTLFile(storage, 0)
		if cfg.SizeBytes > 0 {
			if err := w.SetSize(cfg.SizeBytes); err != nil {
				w.Close()
				return nil, err
			}
		}
		return w, nil

	default:
		return nil, emdisk.New("file.Open", emdisk.CodeStateViolation, "unknown io backend: "+string(cfg.IOBackend))
	}
}

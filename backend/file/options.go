package file

import (
	"os"
	"strconv"
)

// Config holds configuration for file streams.
type Config struct {
	// Platform performs the OS calls.
	// Default: OSPlatform.
	Platform Platform

	// FilePermissions is the permission mode for created files.
	// Default: 0644
	FilePermissions os.FileMode

	// TempDir is the directory for temporary files made from stdin or
	// data URIs. Empty means os.TempDir().
	TempDir string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Platform:        OSPlatform{},
		FilePermissions: 0644,
	}
}

// ConfigFromMap creates a Config from a string map.
// Supported keys:
//   - file_permissions: octal permission bits for created files (default: "0644")
//   - temp_dir: directory for temporary files
func ConfigFromMap(m map[string]string) Config {
	config := DefaultConfig()

	if v, ok := m["file_permissions"]; ok {
		if perm, err := strconv.ParseUint(v, 8, 32); err == nil && perm > 0 {
			config.FilePermissions = os.FileMode(perm)
		}
	}
	if v, ok := m["temp_dir"]; ok {
		config.TempDir = v
	}

	return config
}

// openFlags maps an fopen-style mode ("r", "r+b", "wb", "a+", ...) to
// os.OpenFile flags and the operations the resulting handle permits.
func openFlags(mode string) (flag int, readable, writable bool, ok bool) {
	var base []byte
	for i := 0; i < len(mode); i++ {
		switch mode[i] {
		case 'b', 't':
		default:
			base = append(base, mode[i])
		}
	}

	switch string(base) {
	case "r":
		return os.O_RDONLY, true, false, true
	case "r+":
		return os.O_RDWR, true, true, true
	case "w":
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, false, true, true
	case "w+":
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, true, true, true
	case "a":
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, false, true, true
	case "a+":
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, true, true, true
	}
	return 0, false, false, false
}

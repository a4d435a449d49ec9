//go:build no_mmap

package file

import "os"

// nativeMmap reports whether OS memory mapping is compiled in.
const nativeMmap = false

func mapNative(f *os.File, size int, writable bool) (*mapping, error) {
	return emulateMapping(f, size, writable)
}

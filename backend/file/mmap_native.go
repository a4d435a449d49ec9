//go:build !no_mmap

package file

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

// nativeMmap reports whether OS memory mapping is compiled in.
const nativeMmap = true

func mapNative(f *os.File, size int, writable bool) (*mapping, error) {
	prot := mmap.RDONLY
	if writable {
		prot = mmap.RDWR
	}
	region, err := mmap.MapRegion(f, size, prot, 0, 0)
	if err != nil {
		return nil, err
	}
	return &mapping{
		data:     region,
		writable: writable,
		release: func(File) error {
			if writable {
				if err := region.Flush(); err != nil {
					_ = region.Unmap()
					return err
				}
			}
			return region.Unmap()
		},
	}, nil
}

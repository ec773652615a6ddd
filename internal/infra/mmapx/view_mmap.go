//go:build linux || darwin

package mmapx

import (
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int) (*View, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	// 扫描是一次顺序遍历；提示失败不影响正确性。
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
	return &View{data: data, release: unix.Munmap}, nil
}

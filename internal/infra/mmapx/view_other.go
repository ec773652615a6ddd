//go:build !(linux || darwin)

package mmapx

import (
	"io"
	"os"
)

func mapFile(f *os.File, size int) (*View, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, err
	}
	return &View{data: data}, nil
}

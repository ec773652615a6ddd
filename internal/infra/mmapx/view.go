// Package mmapx 提供只读的文件字节视图。
//
// linux/darwin 上使用 mmap（并提示内核顺序读取）；其他平台退化为一次性读入内存。
// View 由获取它的文件任务独占，必须在任务的所有退出路径上 Close。
package mmapx

import (
	"fmt"
	"os"
	"sync"
)

// View 是文件内容的只读视图。调用方不得修改 Bytes 返回的切片。
type View struct {
	data []byte

	once    sync.Once
	release func([]byte) error
	err     error
}

// Bytes 返回视图内容；Close 之后不可再访问。
func (v *View) Bytes() []byte { return v.data }

// Len 返回视图字节数。
func (v *View) Len() int { return len(v.data) }

// Close 释放视图。可重复调用，只有第一次真正释放。
func (v *View) Close() error {
	v.once.Do(func() {
		if v.release != nil {
			v.err = v.release(v.data)
		}
		v.data = nil
	})
	return v.err
}

// AcquireError 表示文件无法打开或映射。上层把它映射为 error_code=acquire_failed。
type AcquireError struct {
	Path string
	Op   string
	Err  error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("无法读取 %q（%s）：%v", e.Path, e.Op, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// Open 打开 path 并返回只读视图。
// 目录与非普通文件返回 AcquireError；空文件返回空视图（不做映射）。
func Open(path string) (*View, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &AcquireError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, &AcquireError{Path: path, Op: "stat", Err: err}
	}
	if !fi.Mode().IsRegular() {
		return nil, &AcquireError{Path: path, Op: "stat", Err: fmt.Errorf("不是普通文件（%s）", fi.Mode().Type())}
	}
	if fi.Size() == 0 {
		return &View{}, nil
	}
	if int64(int(fi.Size())) != fi.Size() {
		return nil, &AcquireError{Path: path, Op: "mmap", Err: fmt.Errorf("文件过大：%d 字节", fi.Size())}
	}

	v, err := mapFile(f, int(fi.Size()))
	if err != nil {
		return nil, &AcquireError{Path: path, Op: "mmap", Err: err}
	}
	return v, nil
}

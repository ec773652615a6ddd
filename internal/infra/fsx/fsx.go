package fsx

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟 rename/link 失败。
var (
	renameFunc = os.Rename
	linkFunc   = os.Link
)

// Mode 决定目标文件已存在时的行为。
type Mode int

const (
	// NoOverwrite：目标已存在则返回 os.ErrExist，原文件不动。
	NoOverwrite Mode = iota
	// Replace：原子替换已有文件。
	Replace
)

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
// 上层可把它映射为 error_code=target_conflict。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// EnsureDir 确保 dir 存在且是目录；路径被普通文件占用时返回 PathTypeConflictError。
func EnsureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if fi.IsDir() {
			return nil
		}
		return &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteFile 在 dir 下原子写入 name：先写同目录临时文件并 fsync，再发布到最终文件名。
// 任何失败都不会留下半写的目标文件，临时文件也会被清理。
//
// NoOverwrite 模式下用硬链接发布，目标已存在时由文件系统保证不被覆盖；
// 文件系统不支持硬链接时退回 stat + rename。
func WriteFile(dir, name string, data []byte, mode Mode) error {
	dir = filepath.Clean(dir)
	dst := filepath.Join(dir, name)

	if err := EnsureDir(dir); err != nil {
		return err
	}
	if fi, err := os.Lstat(dst); err == nil {
		if fi.IsDir() {
			return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
		}
		if !fi.Mode().IsRegular() {
			return &PathTypeConflictError{Path: dst, Want: "regular file", Got: fi.Mode().Type().String()}
		}
		if mode == NoOverwrite {
			return os.ErrExist
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	return writeFileAtomic(dir, name, data, 0o644, mode)
}

// WriteFileAtomicReplace 写入并覆盖同名文件（报告等内部产物使用）。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	return WriteFile(dir, name, data, Replace)
}

// WriteFileAtomicNoOverwrite 写入但不覆盖同名文件；已存在时返回 os.ErrExist。
func WriteFileAtomicNoOverwrite(dir, name string, data []byte) error {
	return WriteFile(dir, name, data, NoOverwrite)
}

func writeFileAtomic(dir, name string, data []byte, perm os.FileMode, mode Mode) error {
	dst := filepath.Join(dir, name)

	// 创建同目录临时文件（前缀带 '.'，避免在相册视图里露出半成品）。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if mode == NoOverwrite {
		err = publishNoClobber(tmpName, dst)
	} else {
		err = renameFunc(tmpName, dst)
	}
	if err != nil {
		return err
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(dir)

	// 发布成功后，defer 只会删除临时名（link 模式下是多余的那个链接）。
	return nil
}

func publishNoClobber(tmpName, dst string) error {
	err := linkFunc(tmpName, dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return os.ErrExist
	}
	if _, e := os.Lstat(dst); e == nil {
		return os.ErrExist
	}
	return renameFunc(tmpName, dst)
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

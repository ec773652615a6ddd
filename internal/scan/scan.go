package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/jpgfromraw/internal/domain"
)

// DefaultRawExts 是目录展开时默认识别的 RAW 扩展名（小写，带点）。
var DefaultRawExts = []string{
	".arw", ".cr2", ".cr3", ".crw", ".dng", ".erf", ".kdc", ".mef", ".mrw", ".nef",
	".nrw", ".orf", ".pef", ".raf", ".raw", ".rw2", ".rwl", ".sr2", ".srf", ".srw", ".x3f",
}

// Options 控制输入展开。
type Options struct {
	// Extensions 是额外识别的扩展名（大小写不敏感，可不带点）。
	Extensions []string
	// Exclude 是绝对路径列表；其下的文件与目录一律跳过（通常是输出目录与报告目录）。
	Exclude []string
}

// WalkError 表示某个输入目录无法完整遍历。
type WalkError struct {
	Root string
	Err  error
}

func (e *WalkError) Error() string {
	return fmt.Sprintf("遍历目录 %q 失败：%v", e.Root, e.Err)
}

func (e *WalkError) Unwrap() error { return e.Err }

// Expand 把输入路径展开为待处理文件列表。
//
// 规则（硬约束）：
// - inputs 必须是 clean + absolute
// - 目录：递归遍历，只收集扩展名命中的文件；RelPath 相对该目录
// - 文件（或不存在的路径）：原样收入，不检查扩展名；不存在由执行阶段报告 acquire_failed
// - 同一路径只收一次；输出按 AbsPath 字典序稳定排序
//
// 某个目录遍历失败不影响其他输入：该目录已收集的文件保留，错误以 *WalkError 返回。
// 注意：展开阶段只做 stat（DirEntry.Info），不读文件内容。
func Expand(inputs []string, opt Options) ([]domain.RawFile, []error) {
	exts := buildExts(opt.Extensions)
	excluded := buildExcluded(opt.Exclude)

	seen := make(map[string]struct{}, 128)
	files := make([]domain.RawFile, 0, 128)
	var errs []error

	add := func(f domain.RawFile) {
		if _, ok := seen[f.AbsPath]; ok {
			return
		}
		seen[f.AbsPath] = struct{}{}
		files = append(files, f)
	}

	for _, in := range inputs {
		in = filepath.Clean(in)
		fi, err := os.Stat(in)
		if err != nil || !fi.IsDir() {
			add(fileFromInfo(in, filepath.Base(in), fi))
			continue
		}
		if err := walkDir(in, exts, excluded, add); err != nil {
			errs = append(errs, &WalkError{Root: in, Err: err})
		}
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].AbsPath < files[j].AbsPath })
	return files, errs
}

func walkDir(root string, exts map[string]struct{}, excluded []string, add func(domain.RawFile)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		// 统一的排除判断：目录用 SkipDir，文件则直接跳过。
		// 输入目录本身位于排除目录下时仍然遍历（用户显式要求）。
		if path != root && isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, ok := exts[strings.ToLower(filepath.Ext(d.Name()))]; !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		add(fileFromInfo(path, rel, info))
		return nil
	})
}

func fileFromInfo(abs, rel string, info fs.FileInfo) domain.RawFile {
	name := filepath.Base(abs)
	f := domain.RawFile{
		AbsPath: abs,
		RelPath: rel,
		Base:    strings.TrimSuffix(name, filepath.Ext(name)),
		Ext:     strings.ToLower(filepath.Ext(name)),
	}
	if info != nil {
		f.Size = info.Size()
		f.ModUnix = info.ModTime().Unix()
	}
	return f
}

func buildExts(extra []string) map[string]struct{} {
	exts := make(map[string]struct{}, len(DefaultRawExts)+len(extra))
	for _, e := range DefaultRawExts {
		exts[e] = struct{}{}
	}
	for _, e := range extra {
		if n := NormalizeExt(e); n != "" {
			exts[n] = struct{}{}
		}
	}
	return exts
}

// NormalizeExt 把 "CR2"、".cr2"、" .Cr2 " 统一为 ".cr2"；空串返回空串。
func NormalizeExt(e string) string {
	e = strings.ToLower(strings.TrimSpace(e))
	if e == "" || e == "." {
		return ""
	}
	if !strings.HasPrefix(e, ".") {
		e = "." + e
	}
	return e
}

func buildExcluded(dirs []string) []string {
	excluded := make([]string, 0, len(dirs))
	for _, x := range dirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		excluded = append(excluded, filepath.Clean(x))
	}
	// 排除列表排序后，isExcluded 的行为更可预测（且便于测试）。
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/jpgfromraw/internal/extract"
	"github.com/John-Robertt/jpgfromraw/internal/scan"
)

const (
	// ErrCodeNotFound 表示 --config 指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingInput 表示 CLI 与配置文件都没有给出输入路径。
	ErrCodeMissingInput = "config_missing_input"
)

const (
	// FileName 是默认配置文件名（位于 cwd，可选）。
	FileName = "jpgfromraw.json"
	// DefaultConcurrency 是同时处理的文件数上限的内置默认值。
	DefaultConcurrency = 8
	// MaxConcurrency 是并发上限；更大的值按上限处理（帮助文本中写明）。
	MaxConcurrency = 64
	// MaxScanWorkers 是扫描池大小上限；0 表示按 GOMAXPROCS。
	MaxScanWorkers = 256
)

// CLIArgs 是 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --overwrite=false 必须能覆盖 overwrite_existing=true。
type CLIArgs struct {
	Inputs     []string
	ConfigFile string

	OutputDir string
	ReportDir string

	Concurrency    int
	ConcurrencySet bool

	ScanWorkers    int
	ScanWorkersSet bool

	Overwrite    bool
	OverwriteSet bool

	KeepIncomplete    bool
	KeepIncompleteSet bool

	Select    string
	SelectSet bool

	RequireScan    bool
	RequireScanSet bool

	// Extensions 追加到配置文件的 extensions 之后（不是覆盖）。
	Extensions []string
}

// FileConfig 对应 jpgfromraw.json 的解析结构。
// 其中的相对路径都相对配置文件所在目录。
type FileConfig struct {
	Inputs            []string `json:"inputs"`
	OutputDir         string   `json:"output_dir"`
	ReportDir         string   `json:"report_dir"`
	Concurrency       int      `json:"concurrency"`
	ScanWorkers       int      `json:"scan_workers"`
	OverwriteExisting *bool    `json:"overwrite_existing"`
	KeepIncomplete    *bool    `json:"keep_incomplete"`
	Select            string   `json:"select"`
	RequireScan       *bool    `json:"require_scan"`
	Extensions        []string `json:"extensions"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取到的配置文件；没有读取任何文件时为空。
	ConfigPath string

	Inputs    []string
	OutputDir string
	ReportDir string

	Concurrency int
	ScanWorkers int

	OverwriteExisting bool
	KeepIncomplete    bool
	Select            string
	RequireScan       bool

	Extensions []string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingInput:
		return fmt.Sprintf("%s：没有输入路径（命令行未给出，配置文件 %q 也没有 inputs）", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在，否则 config_not_found
// 2) 否则尝试读取 <cwd>/jpgfromraw.json（可选）
//
// 覆盖优先级（固定）：
// - inputs：CLI 位置参数 > config inputs；两者都没有则 config_missing_input
// - 标量字段：CLI 显式指定 > config > 内置默认
// - extensions：config 与 CLI 合并
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if strings.TrimSpace(cli.ConfigFile) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigFile)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	// 配置文件里的相对路径以配置文件所在目录为基准。
	fileBase := cwdAbs
	if cfgPath != "" {
		fileBase = filepath.Dir(cfgPath)
	}
	errPath := cfgPath
	if errPath == "" {
		errPath = "<cli>"
	}

	// inputs：CLI > config
	var inputs []string
	if len(cli.Inputs) > 0 {
		inputs = absAll(cwdAbs, cli.Inputs)
	} else {
		inputs = absAll(fileBase, fc.Inputs)
	}
	if len(inputs) == 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingInput, Path: errPath}
	}

	outputDir := absCleanFrom(fileBase, fc.OutputDir)
	if strings.TrimSpace(cli.OutputDir) != "" {
		outputDir = absCleanFrom(cwdAbs, cli.OutputDir)
	}
	reportDir := absCleanFrom(fileBase, fc.ReportDir)
	if strings.TrimSpace(cli.ReportDir) != "" {
		reportDir = absCleanFrom(cwdAbs, cli.ReportDir)
	}

	// 配置文件里 concurrency 缺省（0）表示未设置；显式给出的值必须是正整数。
	concurrency := DefaultConcurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
		if concurrency < 1 {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: "<cli>", Err: fmt.Errorf("concurrency 必须是正整数，实际是 %d", concurrency)}
		}
	} else if fc.Concurrency != 0 {
		concurrency = fc.Concurrency
		if concurrency < 1 {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: errPath, Err: fmt.Errorf("concurrency 必须是正整数，实际是 %d", concurrency)}
		}
	}
	// 上限 MaxConcurrency（帮助文本中写明）；超出按上限处理。
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	scanWorkers := fc.ScanWorkers
	if cli.ScanWorkersSet {
		scanWorkers = cli.ScanWorkers
	}
	if scanWorkers < 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: errPath, Err: fmt.Errorf("scan_workers 不能为负数，实际是 %d", scanWorkers)}
	}
	if scanWorkers > MaxScanWorkers {
		scanWorkers = MaxScanWorkers
	}

	overwrite := pickBool(cli.OverwriteSet, cli.Overwrite, fc.OverwriteExisting, false)
	keepIncomplete := pickBool(cli.KeepIncompleteSet, cli.KeepIncomplete, fc.KeepIncomplete, false)
	requireScan := pickBool(cli.RequireScanSet, cli.RequireScan, fc.RequireScan, true)

	sel := extract.SelectAll
	if cli.SelectSet {
		sel = strings.ToLower(strings.TrimSpace(cli.Select))
	} else if strings.TrimSpace(fc.Select) != "" {
		sel = strings.ToLower(strings.TrimSpace(fc.Select))
	}
	if err := extract.ValidateSelect(sel); err != nil || sel == "" {
		if err == nil {
			err = fmt.Errorf("select 不能为空")
		}
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: errPath, Err: err}
	}

	exts := make([]string, 0, len(fc.Extensions)+len(cli.Extensions))
	for _, e := range append(append([]string(nil), fc.Extensions...), cli.Extensions...) {
		n := scan.NormalizeExt(e)
		if n == "" {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: errPath, Err: fmt.Errorf("extensions 含空值")}
		}
		if strings.ContainsAny(n[1:], `./\`) {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: errPath, Err: fmt.Errorf("extensions 含非法扩展名 %q", e)}
		}
		exts = append(exts, n)
	}

	return EffectiveConfig{
		ConfigPath:        cfgPath,
		Inputs:            inputs,
		OutputDir:         outputDir,
		ReportDir:         reportDir,
		Concurrency:       concurrency,
		ScanWorkers:       scanWorkers,
		OverwriteExisting: overwrite,
		KeepIncomplete:    keepIncomplete,
		Select:            sel,
		RequireScan:       requireScan,
		Extensions:        exts,
	}, nil
}

func pickBool(cliSet, cliVal bool, fileVal *bool, def bool) bool {
	if cliSet {
		return cliVal
	}
	if fileVal != nil {
		return *fileVal
	}
	return def
}

func absAll(base string, ps []string) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		if a := absCleanFrom(base, p); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 为空白：返回空串
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/jpgfromraw/internal/app/run"
	"github.com/John-Robertt/jpgfromraw/internal/config"
	"github.com/John-Robertt/jpgfromraw/internal/domain"
	"github.com/John-Robertt/jpgfromraw/internal/extract"
	"github.com/John-Robertt/jpgfromraw/internal/report"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ra)
	if err != nil {
		emitReport(reportForConfigError(err))
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "收到信号 %v，等待进行中的文件完成…\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		ui := newProgressUI(progressW)
		defer ui.Stop()
		obs = ui
	}

	rr := run.ExecuteWithObserver(ctx, eff, obs)

	if eff.ReportDir != "" {
		if err := report.Write(eff.ReportDir, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入报告失败：%v\n", err)
			emitReport(rr)
			return 1
		}
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff)
	}
	if rr.Summary.OK() {
		return 0
	}
	return 1
}

func parseRunArgs(args []string) (config.CLIArgs, error) {
	ra := config.CLIArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		name, val, hasVal := strings.Cut(a, "=")
		if !strings.HasPrefix(a, "-") {
			ra.Inputs = append(ra.Inputs, a)
			continue
		}

		switch name {
		case "--out", "--report", "--config", "--select", "--ext", "-j", "--concurrency", "--scan-workers":
			if !hasVal {
				if i+1 >= len(args) {
					return config.CLIArgs{}, fmt.Errorf("%s 需要一个值", name)
				}
				i++
				val = args[i]
			}
			if err := setValue(&ra, name, val); err != nil {
				return config.CLIArgs{}, err
			}
		case "--overwrite":
			b, err := parseBool(name, val, hasVal)
			if err != nil {
				return config.CLIArgs{}, err
			}
			ra.Overwrite, ra.OverwriteSet = b, true
		case "--keep-incomplete":
			b, err := parseBool(name, val, hasVal)
			if err != nil {
				return config.CLIArgs{}, err
			}
			ra.KeepIncomplete, ra.KeepIncompleteSet = b, true
		case "--loose":
			b, err := parseBool(name, val, hasVal)
			if err != nil {
				return config.CLIArgs{}, err
			}
			ra.RequireScan, ra.RequireScanSet = !b, true
		default:
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		}
	}

	return ra, nil
}

func setValue(ra *config.CLIArgs, name, val string) error {
	switch name {
	case "--out":
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("--out 不能为空")
		}
		ra.OutputDir = val
	case "--report":
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("--report 不能为空")
		}
		ra.ReportDir = val
	case "--config":
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("--config 不能为空")
		}
		ra.ConfigFile = val
	case "--select":
		v := strings.ToLower(strings.TrimSpace(val))
		if v == "" {
			return fmt.Errorf("--select 不能为空")
		}
		if err := extract.ValidateSelect(v); err != nil {
			return fmt.Errorf("--select 只能是 all、largest 或 smallest，实际是 %q", val)
		}
		ra.Select, ra.SelectSet = v, true
	case "--ext":
		ra.Extensions = append(ra.Extensions, val)
	case "-j", "--concurrency":
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || n < 1 {
			return fmt.Errorf("%s 必须是正整数，实际是 %q", name, val)
		}
		ra.Concurrency, ra.ConcurrencySet = n, true
	case "--scan-workers":
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || n < 0 {
			return fmt.Errorf("--scan-workers 必须是非负整数，实际是 %q", val)
		}
		ra.ScanWorkers, ra.ScanWorkersSet = n, true
	}
	return nil
}

func parseBool(name, val string, hasVal bool) (bool, error) {
	if !hasVal {
		return true, nil
	}
	switch val {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%s 只能是 true 或 false，实际是 %q", name, val)
	}
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  jpgfromraw run <input>... [--out DIR] [-j N] [--overwrite] [--select all|largest|smallest]

命令：
  run    从 RAW 文件中提取内嵌的 JPEG 预览

使用 "jpgfromraw run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  jpgfromraw run <input>... [参数]

输入可以是文件或目录；目录会递归遍历，只收集 RAW 扩展名的文件。

参数：
  --out DIR              输出目录（默认与输入同目录；目录输入会保留子目录层级）
  -j, --concurrency N    同时处理的文件数，正整数（默认 8；大于 64 时按 64 处理）
  --scan-workers N       扫描协程数（默认 GOMAXPROCS）
  --overwrite[=bool]     覆盖已存在的输出（默认不覆盖）
  --keep-incomplete[=bool]
                         也写出缺少 EOI 的图片（默认不写）
  --select MODE          all|largest|smallest（默认 all）
  --loose                不要求 SOI 后紧跟标记、也不要求出现 SOS
  --ext EXT              追加 RAW 扩展名（可重复）
  --report DIR           写入 report.json 与 report.html
  --config FILE          配置文件（默认读取 ./jpgfromraw.json，若存在）
  -h, --help             显示帮助
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintln(os.Stdout, summaryLine(rr.Summary))
		if rr.Summary.Failed > 0 || rr.Summary.Partial > 0 {
			for _, f := range rr.Files {
				if f.Status == domain.StatusSucceeded {
					continue
				}
				key := f.Src
				if key == "" {
					key = "<unknown>"
				}
				fmt.Fprintf(os.Stderr, "%s %s %s: %s\n", key, f.Status, f.ErrorCode, f.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(os.Stderr, summaryLine(rr.Summary))
}

func summaryLine(s domain.BatchSummary) string {
	return fmt.Sprintf("完成：succeeded=%d partial=%d failed=%d images=%d",
		s.Succeeded, s.Partial, s.Failed, s.Images,
	)
}

func reportForConfigError(err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		RunID:      uuid.NewString(),
		StartedAt:  now,
		FinishedAt: now,
		Files: []domain.FileResult{{
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	if eff.ReportDir != "" {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.ReportDir, report.HTMLName))
	}
	if eff.OutputDir != "" {
		fmt.Fprintf(w, "out: %s\n", eff.OutputDir)
	}
}

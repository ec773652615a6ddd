package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/jpgfromraw/internal/app/run"
	"github.com/John-Robertt/jpgfromraw/internal/config"
	"github.com/John-Robertt/jpgfromraw/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：大文件长时间没有结果时也会定期输出一行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers int
	total   int
	started int
	done    int
	ok      int
	partial int
	fail    int
	images  int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] jpgfromraw run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  inputs: %s\n", formatStringListJSON(eff.Inputs))
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  scan_workers: %s\n", formatScanWorkers(eff.ScanWorkers))
	fmt.Fprintf(p.w, "  select: %s\n", eff.Select)
	fmt.Fprintf(p.w, "  overwrite: %s\n", onOff(eff.OverwriteExisting))
	fmt.Fprintf(p.w, "  keep_incomplete: %s\n", onOff(eff.KeepIncomplete))
	fmt.Fprintf(p.w, "  require_scan: %s\n", onOff(eff.RequireScan))
	if len(eff.Extensions) > 0 {
		fmt.Fprintf(p.w, "  extensions: %s + 内置 RAW 扩展名\n", formatStringListJSON(eff.Extensions))
	}

	fmt.Fprintln(p.w, "输出:")
	if eff.OutputDir != "" {
		fmt.Fprintf(p.w, "  out: %s\n", eff.OutputDir)
	} else {
		fmt.Fprintln(p.w, "  out: 与输入同目录")
	}
	if eff.ReportDir != "" {
		fmt.Fprintf(p.w, "  report: %s\n", filepath.Join(eff.ReportDir, "report.{json,html}"))
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d errors=%d (%s)\n",
			intField(fields, "files"), intField(fields, "errors"), formatShortDuration(dur),
		)
	case "plan":
		fmt.Fprintf(p.w, "规划: files=%d conflicts=%d (%s)\n",
			intField(fields, "files"), intField(fields, "conflicts"), formatShortDuration(dur),
		)
	case "exec":
		p.workers = intField(fields, "workers")
		p.total = intField(fields, "total_files")
		fmt.Fprintf(p.w, "执行: workers=%d scan_workers=%d total_files=%d\n\n",
			p.workers, intField(fields, "scan_workers"), p.total,
		)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnFileStarted(string) {
	p.mu.Lock()
	p.started++
	p.mu.Unlock()
}

func (p *progressUI) OnFileCompleted(idx, total int, res domain.FileResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.record(idx, total, res)

	written := res.Written()
	switch res.Status {
	case domain.StatusPartial:
		fmt.Fprintf(p.w, "[%d/%d] %s PARTIAL images=%d/%d %s: %s (%s)\n",
			idx, total, displayName(res), written, len(res.Images), res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	default:
		note := ""
		if exists := countStatus(res, domain.ImageStatusExists); exists > 0 {
			note = fmt.Sprintf(" exists=%d", exists)
		}
		fmt.Fprintf(p.w, "[%d/%d] %s OK images=%d%s (%s)\n",
			idx, total, displayName(res), written, note, formatShortDuration(dur),
		)
	}
	p.lastPrinted = time.Now()
	p.stopIfDoneLocked()
}

func (p *progressUI) OnFileFailed(idx, total int, res domain.FileResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.record(idx, total, res)
	fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s (%s)\n",
		idx, total, displayName(res), res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
	)
	p.lastPrinted = time.Now()
	p.stopIfDoneLocked()
}

func (p *progressUI) OnBatchCompleted(sum domain.BatchSummary, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopTickerLocked()
	fmt.Fprintf(p.w, "\n批次完成: succeeded=%d partial=%d failed=%d images=%d (%s)\n",
		sum.Succeeded, sum.Partial, sum.Failed, sum.Images, formatElapsed(dur),
	)
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnProgress(done, total, ok, partial, fail, active int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.printProgressLocked(done, total, ok, partial, fail, active, elapsed)
}

// Stop 停止 keepalive ticker（可重复调用）。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) record(idx, total int, res domain.FileResult) {
	// idx/total 由 run 层给出；这里同时维护自己的计数，供 keepalive 使用。
	p.done = idx
	p.total = total
	p.images += res.Written()
	switch res.Status {
	case domain.StatusSucceeded:
		p.ok++
	case domain.StatusPartial:
		p.partial++
	case domain.StatusFailed:
		p.fail++
	}
}

func (p *progressUI) printProgressLocked(done, total, ok, partial, fail, active int, elapsed time.Duration) {
	fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d partial=%d fail=%d active=%d elapsed=%s\n",
		done, total, ok, partial, fail, active, formatElapsed(elapsed),
	)
	p.lastPrinted = time.Now()
}

// activeLocked 是已开始但尚未出结果的文件数；取消的文件不会 started，所以可能为负，截到 0。
func (p *progressUI) activeLocked() int {
	n := p.started - (p.ok + p.partial + p.fail)
	if n < 0 {
		return 0
	}
	return n
}

func (p *progressUI) stopIfDoneLocked() {
	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.total > 0 && p.done >= p.total {
		p.stopTickerLocked()
	}
}

func (p *progressUI) stopTickerLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stopCh := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					p.printProgressLocked(p.done, p.total, p.ok, p.partial, p.fail, p.activeLocked(), time.Since(p.startedAt))
				}
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

func displayName(res domain.FileResult) string {
	if res.Rel != "" {
		return res.Rel
	}
	if res.Src != "" {
		return res.Src
	}
	return "<unknown>"
}

func countStatus(res domain.FileResult, status string) int {
	n := 0
	for _, im := range res.Images {
		if im.Status == status {
			n++
		}
	}
	return n
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatScanWorkers(n int) string {
	if n <= 0 {
		return "auto (GOMAXPROCS)"
	}
	return fmt.Sprintf("%d", n)
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}

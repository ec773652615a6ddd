package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/jpgfromraw/internal/config"
	"github.com/John-Robertt/jpgfromraw/internal/domain"
)

func TestProgressUI_FileLines(t *testing.T) {
	var buf bytes.Buffer
	ui := newProgressUI(&buf)
	defer ui.Stop()

	ui.OnStart(config.EffectiveConfig{Inputs: []string{"/in"}, Concurrency: 2, Select: "all", RequireScan: true})
	ui.OnPhaseDone("exec", map[string]any{"workers": 2, "scan_workers": 4, "total_files": 3}, 0)

	ui.OnFileStarted("/in/a.cr2")
	ui.OnFileCompleted(1, 3, domain.FileResult{
		Src: "/in/a.cr2", Rel: "a.cr2", Status: domain.StatusSucceeded,
		Images: []domain.ImageResult{{Status: domain.ImageStatusWritten}, {Status: domain.ImageStatusExists}},
	}, time.Second)
	ui.OnFileCompleted(2, 3, domain.FileResult{
		Src: "/in/b.nef", Rel: "b.nef", Status: domain.StatusPartial, ErrorCode: domain.ErrCodeIncompleteImage, ErrorMsg: "1/2 张图片不完整",
		Images: []domain.ImageResult{{Status: domain.ImageStatusWritten}, {Status: domain.ImageStatusSkipped}},
	}, time.Second)
	ui.OnFileFailed(3, 3, domain.FileResult{
		Src: "/in/c.arw", Status: domain.StatusFailed, ErrorCode: domain.ErrCodeAcquireFailed, ErrorMsg: "no such file",
	}, time.Second)
	ui.OnBatchCompleted(domain.BatchSummary{Succeeded: 1, Partial: 1, Failed: 1, Images: 2}, 3*time.Second)

	out := buf.String()
	for _, want := range []string{
		"执行: workers=2 scan_workers=4 total_files=3",
		"[1/3] a.cr2 OK images=1 exists=1",
		"[2/3] b.nef PARTIAL images=1/2 incomplete_image",
		"[3/3] /in/c.arw FAIL acquire_failed: no such file",
		"批次完成: succeeded=1 partial=1 failed=1 images=2 (00:00:03)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
	if ui.tickerStarted {
		t.Fatalf("全部完成后 ticker 应已停止")
	}
}

func TestProgressUI_StopIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	ui := newProgressUI(&buf)
	ui.OnPhaseDone("exec", map[string]any{"workers": 1, "total_files": 5}, 0)
	if !ui.tickerStarted {
		t.Fatalf("有待处理文件时应启动 ticker")
	}
	ui.Stop()
	ui.Stop()
	ui.OnBatchCompleted(domain.BatchSummary{}, 0)
}

func TestProgressUI_ActiveNeverNegative(t *testing.T) {
	ui := newProgressUI(&bytes.Buffer{})
	ui.fail = 3 // 取消的文件只有 failed，没有 started
	if got := ui.activeLocked(); got != 0 {
		t.Fatalf("期望 0，实际 %d", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefgh", 5); got != "ab..." {
		t.Fatalf("期望 %q，实际 %q", "ab...", got)
	}
	if got := truncate(" abc ", 10); got != "abc" {
		t.Fatalf("期望 %q，实际 %q", "abc", got)
	}
}

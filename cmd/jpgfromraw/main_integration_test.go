package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/jpgfromraw/internal/domain"
)

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	// 锁定对外契约：stdout 非 TTY 时只能输出一个 RunReport JSON（进度/配置必须走 stderr 或直接禁用）。
	root := t.TempDir()

	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, image.NewGray(image.Rect(0, 0, 16, 8)), nil); err != nil {
		t.Fatalf("编码 JPEG 失败：%v", err)
	}
	raw := append([]byte("II*\x00header"), jpg.Bytes()...)
	raw = append(raw, bytes.Repeat([]byte{0x00}, 32)...)

	in := filepath.Join(root, "in", "IMG_0001.CR2")
	if err := os.MkdirAll(filepath.Dir(in), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(in, raw, 0o644); err != nil {
		t.Fatalf("写入 RAW 失败：%v", err)
	}
	out := filepath.Join(root, "out")
	reports := filepath.Join(root, "reports")

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/jpgfromraw", "run", filepath.Join(root, "in"), "--out", out, "--report", reports)
	cmd.Dir = repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s\nstdout=%s", err, stderr.String(), stdout.String())
	}

	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, stdout.String())
	}
	if rr.Summary.Succeeded != 1 || rr.Summary.Images != 1 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
	if strings.Contains(stdout.String(), "配置（生效）") || strings.Contains(stdout.String(), "进度:") {
		t.Fatalf("stdout 不应包含进度/配置输出：%q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "完成：succeeded=1") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}

	got, err := os.ReadFile(filepath.Join(out, "IMG_0001.jpg"))
	if err != nil {
		t.Fatalf("读取输出失败：%v", err)
	}
	if !bytes.Equal(got, jpg.Bytes()) {
		t.Fatalf("输出应与内嵌 JPEG 逐字节一致")
	}
	for _, name := range []string{"report.json", "report.html"} {
		if _, err := os.Stat(filepath.Join(reports, name)); err != nil {
			t.Fatalf("缺少 %s：%v", name, err)
		}
	}
}

func TestCLI_UsageErrorExit2(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	cmd := exec.Command("go", "run", "./cmd/jpgfromraw", "run", "--select=biggest", "x.cr2")
	cmd.Dir = filepath.Clean(filepath.Join(wd, "..", ".."))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// go run 不透传子进程退出码（统一为 1），这里只检查非零退出与错误提示。
	if _, ok := cmd.Run().(*exec.ExitError); !ok {
		t.Fatalf("期望非零退出")
	}
	if !strings.Contains(stderr.String(), "参数错误") {
		t.Fatalf("stderr 缺少参数错误提示：%q", stderr.String())
	}
}

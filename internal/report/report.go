// Package report 把 RunReport 写成 report.json 与 report.html。
package report

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/jpgfromraw/internal/domain"
	"github.com/John-Robertt/jpgfromraw/internal/infra/fsx"
	"github.com/John-Robertt/jpgfromraw/internal/infra/imgx"
)

const (
	JSONName = "report.json"
	HTMLName = "report.html"
)

//go:embed page.html
var pageTemplate string

// Write 原子写入 dir/report.json 与 dir/report.html（覆盖旧报告）。
func Write(dir string, rr domain.RunReport) error {
	b, err := EncodeJSON(rr)
	if err != nil {
		return err
	}
	if err := fsx.WriteFileAtomicReplace(dir, JSONName, b); err != nil {
		return fmt.Errorf("写入 %s 失败：%w", JSONName, err)
	}

	h, err := RenderHTML(rr, dir)
	if err != nil {
		return err
	}
	if err := fsx.WriteFileAtomicReplace(dir, HTMLName, h); err != nil {
		return fmt.Errorf("写入 %s 失败：%w", HTMLName, err)
	}
	return nil
}

// EncodeJSON 输出带缩进的 RunReport JSON（以换行结尾）。
func EncodeJSON(rr domain.RunReport) ([]byte, error) {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// RenderHTML 基于内嵌模板生成 HTML 报告：每个输入一行，已落盘的图片以缩略链接展示。
// 图片链接相对 baseDir（报告所在目录），便于整个目录一起拷走后仍可打开。
func RenderHTML(rr domain.RunReport, baseDir string) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageTemplate))
	if err != nil {
		return nil, err
	}

	meta := doc.Find("#meta")
	meta.Find(".run-id").SetText(rr.RunID)
	meta.Find(".started").SetText(formatTime(rr.StartedAt))
	meta.Find(".finished").SetText(formatTime(rr.FinishedAt))
	outDir := rr.OutputDir
	if outDir == "" {
		outDir = "（与输入同目录）"
	}
	meta.Find(".output-dir").SetText(outDir)

	sum := doc.Find("#summary")
	sum.Find(".succeeded").SetText(strconv.Itoa(rr.Summary.Succeeded))
	sum.Find(".partial").SetText(strconv.Itoa(rr.Summary.Partial))
	sum.Find(".failed").SetText(strconv.Itoa(rr.Summary.Failed))
	sum.Find(".images").SetText(strconv.Itoa(rr.Summary.Images))

	tbody := doc.Find("#files tbody")
	rowTpl := tbody.Find("tr.file.template").Remove()
	imgTpl := rowTpl.Find("a.image.template").Remove()
	noteTpl := rowTpl.Find("span.note.template").Remove()

	for _, f := range rr.Files {
		row := rowTpl.Clone()
		row.RemoveClass("template").AddClass("status-" + f.Status)

		src := f.Src
		if src == "" {
			src = "<" + f.ErrorCode + ">"
		}
		row.Find("td.src").SetText(src)
		row.Find("td.status").SetText(f.Status)
		if f.ErrorCode != "" {
			row.Find("td.error").SetText(f.ErrorCode + ": " + f.ErrorMsg)
		}

		cell := row.Find("td.images")
		for _, im := range f.Images {
			switch im.Status {
			case domain.ImageStatusWritten, domain.ImageStatusExists:
				href := linkTo(baseDir, im.Dst)
				a := imgTpl.Clone()
				a.RemoveClass("template")
				if o := imgx.Orientation(im.Width, im.Height); o != "" {
					a.AddClass(o)
				}
				a.SetAttr("href", href)
				img := a.Find("img")
				img.SetAttr("src", href)
				img.SetAttr("alt", filepath.Base(im.Dst))
				img.SetAttr("title", imageTitle(im))
				cell.AppendSelection(a)
			default:
				n := noteTpl.Clone()
				n.RemoveClass("template")
				n.SetText(fmt.Sprintf("#%d %s %s", im.Index, im.Status, im.ErrorMsg))
				cell.AppendSelection(n)
			}
		}

		tbody.AppendSelection(row)
	}

	h, err := doc.Html()
	if err != nil {
		return nil, err
	}
	return []byte(h), nil
}

func imageTitle(im domain.ImageResult) string {
	s := fmt.Sprintf("#%d [%d, %d) %d 字节", im.Index, im.Start, im.End, im.End-im.Start)
	if im.Width > 0 && im.Height > 0 {
		s += fmt.Sprintf(" %dx%d", im.Width, im.Height)
	}
	if !im.Complete {
		s += " 不完整"
	}
	return s
}

func linkTo(baseDir, dst string) string {
	p := filepath.ToSlash(dst)
	if baseDir != "" {
		if rel, err := filepath.Rel(baseDir, dst); err == nil {
			return (&url.URL{Path: filepath.ToSlash(rel)}).String()
		}
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

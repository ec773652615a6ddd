// Package extract 把扫描得到的区间变成输出计划：哪些区间要写、写到什么名字、写什么字节。
//
// 本包是纯函数：不读写文件，不关心并发。
package extract

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/jpgfromraw/internal/domain"
)

// 选择模式。
const (
	SelectAll      = "all"
	SelectLargest  = "largest"
	SelectSmallest = "smallest"
)

// 跳过原因（Output.Write=false 时填写）。
const (
	ReasonIncomplete = "incomplete"
)

// Policy 是调用方决定、由引擎执行的提取策略。
type Policy struct {
	// KeepIncomplete 为 true 时不完整区间也写出（用于抢救部分数据）。
	KeepIncomplete bool
	// RequireScan 为 true 时丢弃不像真实 JPEG 流的区间：SOI 后一字节不是 0xFF，或区间内没有 SOS。
	RequireScan bool
	// Select 取值 all|largest|smallest；空串等同 all。
	Select string
}

// Output 描述一个被报告的区间。Bytes 直接引用输入缓冲区，调用方在释放缓冲区前必须用完。
type Output struct {
	Image  domain.EmbeddedImage
	Name   string
	Bytes  []byte
	Write  bool
	Reason string
}

// ValidateSelect 校验选择模式。
func ValidateSelect(s string) error {
	switch s {
	case "", SelectAll, SelectLargest, SelectSmallest:
		return nil
	default:
		return fmt.Errorf("select 只能是 all、largest 或 smallest，实际是 %q", s)
	}
}

// OutputName 返回第 i 张（0 起）图片的文件名：N==1 时为 S.jpg，否则为 S_i.jpg。
func OutputName(stem string, n, i int) string {
	if n == 1 {
		return stem + ".jpg"
	}
	return fmt.Sprintf("%s_%d.jpg", stem, i)
}

// Plan 根据策略筛选区间、重新编号并命名。
//
// 编号与 N 在筛选之后计算，所以命名只取决于 (stem, 筛选后的区间序列)，与调度顺序无关。
// 因此 N 是保留下来的区间数，不是扫描器找到的区间数：RequireScan 为 true 时，
// 没有 SOS 或 SOI 后不紧跟标记的区间（例如只有 SOI、APP1、EOI 的最小流）会被丢弃，
// 不出现在结果里，也不占编号。
// 输出中的 Bytes 为 buf[Start:End] 原样切片，不做任何变换。
func Plan(buf []byte, images []domain.EmbeddedImage, stem string, p Policy) []Output {
	kept := make([]domain.EmbeddedImage, 0, len(images))
	for _, im := range images {
		if im.Start < 0 || im.End > len(buf) || im.End <= im.Start {
			continue
		}
		if p.RequireScan && !LooksLikeStream(buf, im) {
			continue
		}
		kept = append(kept, im)
	}

	switch strings.ToLower(p.Select) {
	case SelectLargest:
		kept = pickOne(kept, func(a, b int) bool { return a > b })
	case SelectSmallest:
		kept = pickOne(kept, func(a, b int) bool { return a < b })
	}

	out := make([]Output, 0, len(kept))
	for i, im := range kept {
		im.Index = i
		o := Output{
			Image: im,
			Name:  OutputName(stem, len(kept), i),
			Bytes: buf[im.Start:im.End],
			Write: true,
		}
		if !im.Complete && !p.KeepIncomplete {
			o.Write = false
			o.Reason = ReasonIncomplete
		}
		out = append(out, o)
	}
	return out
}

// LooksLikeStream 判断区间是否像一个真实的 JPEG 流（SOI 后紧跟标记，且出现过 SOS）。
// RAW 传感器数据里随机出现的 FF D8 基本都过不了这一关。
func LooksLikeStream(buf []byte, im domain.EmbeddedImage) bool {
	if im.Start+2 >= len(buf) || buf[im.Start+2] != 0xFF {
		return false
	}
	return im.HasScan
}

// pickOne 在完整区间中按 better 选出一个；并列时取偏移最小者。没有完整区间时返回空。
func pickOne(images []domain.EmbeddedImage, better func(a, b int) bool) []domain.EmbeddedImage {
	best := -1
	for i, im := range images {
		if !im.Complete {
			continue
		}
		if best < 0 || better(im.Len(), images[best].Len()) {
			best = i
		}
	}
	if best < 0 {
		return images[:0]
	}
	return []domain.EmbeddedImage{images[best]}
}

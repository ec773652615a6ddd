// Package jpegscan 在任意字节流中定位内嵌 JPEG 的区间。
//
// 扫描器不解析任何 RAW 容器：整个文件被视为不透明字节，只按 JPEG 标记语法
// 找出 SOI..EOI 区间。输入完全不可信，任何声明的段长度都会被截断到缓冲区末尾。
package jpegscan

import (
	"bytes"

	"github.com/John-Robertt/jpgfromraw/internal/domain"
)

// Scanner 以惰性方式逐个产出区间，用法与 bufio.Scanner 类似：
//
//	s := jpegscan.New(buf)
//	for {
//		im, ok := s.Next()
//		if !ok {
//			break
//		}
//		...
//	}
//
// Scanner 只读 buf，不可重启，也不是并发安全的。
type Scanner struct {
	buf []byte
	pos int

	open     bool
	start    int
	hasFrame bool
	hasScan  bool

	index int
}

// New 返回一个从 buf 起始位置开始扫描的 Scanner。
func New(buf []byte) *Scanner {
	return &Scanner{buf: buf}
}

// All 扫描整个 buf 并返回全部区间（按 Start 递增）。
func All(buf []byte) []domain.EmbeddedImage {
	s := New(buf)
	out := make([]domain.EmbeddedImage, 0, 4)
	for {
		im, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, im)
	}
}

// Next 返回下一个区间；ok=false 表示扫描结束（之后的调用始终返回 false）。
func (s *Scanner) Next() (domain.EmbeddedImage, bool) {
	for {
		if s.open {
			return s.walk(), true
		}
		if s.pos >= len(s.buf) {
			return domain.EmbeddedImage{}, false
		}
		i := bytes.Index(s.buf[s.pos:], soiBytes)
		if i < 0 {
			s.pos = len(s.buf)
			return domain.EmbeddedImage{}, false
		}
		s.openAt(s.pos + i)
	}
}

func (s *Scanner) openAt(off int) {
	s.open = true
	s.start = off
	s.hasFrame = false
	s.hasScan = false
	s.pos = off + 2
}

func (s *Scanner) close(end int, complete bool) domain.EmbeddedImage {
	im := domain.EmbeddedImage{
		Start:    s.start,
		End:      end,
		Index:    s.index,
		Complete: complete,
		HasFrame: s.hasFrame,
		HasScan:  s.hasScan,
	}
	s.index++
	s.open = false
	return im
}

// walk 在图片内部按顶层标记前进，直到产出一个区间。
func (s *Scanner) walk() domain.EmbeddedImage {
	buf := s.buf
	for s.pos < len(buf) {
		if buf[s.pos] != markerPrefix {
			// 熵编码数据或垃圾字节：直接跳到下一个 0xFF。
			j := bytes.IndexByte(buf[s.pos:], markerPrefix)
			if j < 0 {
				s.pos = len(buf)
				break
			}
			s.pos += j
			continue
		}
		if s.pos+1 >= len(buf) {
			s.pos = len(buf)
			break
		}

		m := Marker(buf[s.pos+1])
		switch {
		case m == stuffed:
			s.pos += 2
		case m == fill:
			s.pos++
		case m == SOI:
			// 前一张未闭合：在新 SOI 处截断为不完整，再从这里开始新的一张。
			off := s.pos
			im := s.close(off, false)
			s.openAt(off)
			return im
		case m == EOI:
			s.pos += 2
			return s.close(s.pos, true)
		case m.Standalone():
			s.pos += 2
		default:
			if m == SOS {
				s.hasScan = true
			} else if m.IsSOF() {
				s.hasFrame = true
			}
			s.pos = skipSegment(buf, s.pos)
		}
	}
	return s.close(len(buf), false)
}

// skipSegment 返回 off 处带长度段之后的位置。
// 长度为大端 16 位，包含自身 2 字节；L < 2 按 2 处理，结果截断到 len(buf)。
func skipSegment(buf []byte, off int) int {
	if off+4 > len(buf) {
		return len(buf)
	}
	l := int(buf[off+2])<<8 | int(buf[off+3])
	if l < 2 {
		l = 2
	}
	next := off + 2 + l
	if next > len(buf) {
		return len(buf)
	}
	return next
}

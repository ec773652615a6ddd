package jpegscan

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/John-Robertt/jpgfromraw/internal/domain"
)

func TestAll_NoSOI_Empty(t *testing.T) {
	got := All([]byte{0x00, 0xFF, 0xD9, 0x12, 0xFF, 0x00, 0xFF})
	if len(got) != 0 {
		t.Fatalf("期望无区间，实际 %+v", got)
	}
	if got := All(nil); len(got) != 0 {
		t.Fatalf("空缓冲区期望无区间，实际 %+v", got)
	}
}

func TestAll_FalseEOIInsideSegment(t *testing.T) {
	// SOI, APP1(length=4, payload=FF D9), EOI
	buf := []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x04, 0xFF, 0xD9, 0xFF, 0xD9}

	got := All(buf)
	if len(got) != 1 {
		t.Fatalf("期望 1 个区间，实际 %d：%+v", len(got), got)
	}
	im := got[0]
	if im.Start != 0 || im.End != len(buf) || !im.Complete {
		t.Fatalf("区间不符合预期：%+v", im)
	}
}

func TestAll_MissingEOI_IncompleteToEnd(t *testing.T) {
	buf := []byte{0x01, 0x02, 0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x03, 0x00, 0x11, 0x22}

	got := All(buf)
	if len(got) != 1 {
		t.Fatalf("期望 1 个区间，实际 %d：%+v", len(got), got)
	}
	if got[0].Start != 2 || got[0].End != len(buf) || got[0].Complete {
		t.Fatalf("区间不符合预期：%+v", got[0])
	}
}

func TestAll_NestedSOI_ClosesPreviousIncomplete(t *testing.T) {
	buf := []byte{
		0xFF, 0xD8, 0x10, 0x20, // 第一张：没有 EOI
		0xFF, 0xD8, 0xFF, 0xD9, // 第二张：完整
	}

	got := All(buf)
	if len(got) != 2 {
		t.Fatalf("期望 2 个区间，实际 %d：%+v", len(got), got)
	}
	if got[0].Start != 0 || got[0].End != 4 || got[0].Complete || got[0].Index != 0 {
		t.Fatalf("第一张不符合预期：%+v", got[0])
	}
	if got[1].Start != 4 || got[1].End != 8 || !got[1].Complete || got[1].Index != 1 {
		t.Fatalf("第二张不符合预期：%+v", got[1])
	}
}

func TestAll_SegmentLengthBeyondBuffer_Clamped(t *testing.T) {
	buf := []byte{0xFF, 0xD8, 0xFF, 0xE1, 0xFF, 0xFF, 0xFF, 0xD9}

	got := All(buf)
	if len(got) != 1 || got[0].Complete || got[0].End != len(buf) {
		t.Fatalf("越界段长度应截断为不完整区间：%+v", got)
	}
}

func TestAll_ShortSegmentLength_NoLoop(t *testing.T) {
	buf := []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x00, 0xFF, 0xD9}

	got := All(buf)
	if len(got) != 1 || !got[0].Complete || got[0].End != len(buf) {
		t.Fatalf("长度 <2 应只跳过标记与长度字段：%+v", got)
	}
}

func TestAll_RestartAndStuffedBytesDoNotEndImage(t *testing.T) {
	buf := []byte{
		0xFF, 0xD8,
		0xFF, 0xC0, 0x00, 0x02, // SOF0（空载荷）
		0xFF, 0xDA, 0x00, 0x02, // SOS
		0x12, 0xFF, 0x00, 0x34, // 熵编码数据 + 填充字节
		0xFF, 0xD0, 0x56, // RST0
		0xFF, 0xFF, 0xD9, // fill + EOI
	}

	got := All(buf)
	if len(got) != 1 {
		t.Fatalf("期望 1 个区间，实际 %+v", got)
	}
	im := got[0]
	if !im.Complete || im.End != len(buf) || !im.HasScan || !im.HasFrame {
		t.Fatalf("区间不符合预期：%+v", im)
	}
}

func TestAll_EncodedJPEGsInGarbage(t *testing.T) {
	a := mustJPEG(t, 32, 16)
	b := mustJPEG(t, 8, 8)

	var buf bytes.Buffer
	buf.Write([]byte("II*\x00garbage"))
	startA := buf.Len()
	buf.Write(a)
	buf.Write(bytes.Repeat([]byte{0x00, 0xFF, 0x00}, 10))
	startB := buf.Len()
	buf.Write(b)
	buf.Write([]byte{0x01, 0x02})

	got := All(buf.Bytes())
	if len(got) != 2 {
		t.Fatalf("期望 2 个区间，实际 %d：%+v", len(got), got)
	}
	if got[0].Start != startA || got[0].End != startA+len(a) || !got[0].Complete || !got[0].HasScan {
		t.Fatalf("第一张不符合预期：%+v (want [%d,%d))", got[0], startA, startA+len(a))
	}
	if got[1].Start != startB || got[1].End != startB+len(b) || !got[1].Complete {
		t.Fatalf("第二张不符合预期：%+v (want [%d,%d))", got[1], startB, startB+len(b))
	}
	if !bytes.Equal(buf.Bytes()[got[1].Start:got[1].End], b) {
		t.Fatalf("区间内容与原始 JPEG 不一致")
	}
}

func TestScanner_NextAfterEnd(t *testing.T) {
	s := New([]byte{0xFF, 0xD8, 0xFF, 0xD9})
	if _, ok := s.Next(); !ok {
		t.Fatalf("期望得到 1 个区间")
	}
	for i := 0; i < 3; i++ {
		if im, ok := s.Next(); ok {
			t.Fatalf("扫描结束后不应再产出：%+v", im)
		}
	}
}

func TestMarker_Classes(t *testing.T) {
	if !RST0.Standalone() || !TEM.Standalone() || SOS.Standalone() {
		t.Fatalf("standalone 分类不正确")
	}
	if !SOF0.IsSOF() || !(SOF0 + 2).IsSOF() || DHT.IsSOF() || DAC.IsSOF() || JPG.IsSOF() {
		t.Fatalf("SOFn 分类不正确")
	}
	if (SOF0 + 2).String() != "SOF2" || (APP0 + 1).String() != "APP1" || (RST0 + 7).String() != "RST7" {
		t.Fatalf("标记名不正确")
	}
}

func FuzzAll(f *testing.F) {
	f.Add([]byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x04, 0xFF, 0xD9, 0xFF, 0xD9})
	f.Add([]byte{0xFF, 0xD8, 0xFF, 0xD8, 0xFF, 0xD8})
	f.Add([]byte{0xFF, 0xD8, 0xFF, 0xDA, 0xFF, 0xFF})
	f.Add([]byte{0xFF})

	f.Fuzz(func(t *testing.T, buf []byte) {
		checkInvariants(t, buf, All(buf))
	})
}

func checkInvariants(t *testing.T, buf []byte, got []domain.EmbeddedImage) {
	t.Helper()
	prevEnd := 0
	for i, im := range got {
		if im.Index != i {
			t.Fatalf("index 不连续：%+v", got)
		}
		if im.Start < prevEnd || im.End <= im.Start || im.End > len(buf) {
			t.Fatalf("区间越界或重叠：%+v (len=%d)", got, len(buf))
		}
		if buf[im.Start] != 0xFF || buf[im.Start+1] != 0xD8 {
			t.Fatalf("区间必须从 SOI 开始：%+v", im)
		}
		if im.Complete && (buf[im.End-2] != 0xFF || buf[im.End-1] != 0xD9) {
			t.Fatalf("完整区间必须以 EOI 结束：%+v", im)
		}
		prevEnd = im.End
	}
}

func mustJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 13), B: 200, A: 255})
		}
	}
	var b bytes.Buffer
	if err := jpeg.Encode(&b, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("编码 JPEG 失败：%v", err)
	}
	return b.Bytes()
}

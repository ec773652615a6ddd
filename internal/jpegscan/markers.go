package jpegscan

import "fmt"

// Marker 是 0xFF 之后的标记类型字节。
type Marker uint8

const (
	TEM  Marker = 0x01
	SOF0 Marker = 0xC0 // SOFn = SOF0+n，n = 0-15，但不含 4/8/12
	DHT  Marker = 0xC4
	JPG  Marker = 0xC8
	DAC  Marker = 0xCC
	RST0 Marker = 0xD0 // RSTn = RST0+n，n = 0-7
	RST7 Marker = 0xD7
	SOI  Marker = 0xD8
	EOI  Marker = 0xD9
	SOS  Marker = 0xDA
	DQT  Marker = 0xDB
	DRI  Marker = 0xDD
	APP0 Marker = 0xE0 // APPn = APP0+n，n = 0-15
	COM  Marker = 0xFE

	// stuffed 与 fill 不是真正的标记：FF 00 出现在熵编码数据里，FF FF 是填充。
	stuffed Marker = 0x00
	fill    Marker = 0xFF
)

const markerPrefix = 0xFF

var soiBytes = []byte{markerPrefix, byte(SOI)}

// Standalone 表示该标记后面没有长度字段。
// SOI/EOI 也没有长度字段，但扫描器单独处理它们。
func (m Marker) Standalone() bool {
	return m == TEM || (m >= RST0 && m <= RST7)
}

// IsSOF 表示 SOFn（帧头）。
func (m Marker) IsSOF() bool {
	if m < SOF0 || m > SOF0+0xF {
		return false
	}
	return m != DHT && m != JPG && m != DAC
}

func (m Marker) String() string {
	switch {
	case m == TEM:
		return "TEM"
	case m == SOI:
		return "SOI"
	case m == EOI:
		return "EOI"
	case m == SOS:
		return "SOS"
	case m == DHT:
		return "DHT"
	case m == DQT:
		return "DQT"
	case m == DRI:
		return "DRI"
	case m == COM:
		return "COM"
	case m.IsSOF():
		return fmt.Sprintf("SOF%d", m-SOF0)
	case m >= RST0 && m <= RST7:
		return fmt.Sprintf("RST%d", m-RST0)
	case m >= APP0 && m <= APP0+0xF:
		return fmt.Sprintf("APP%d", m-APP0)
	default:
		return fmt.Sprintf("0x%02X", uint8(m))
	}
}

package domain

// EmbeddedImage 是扫描器在一段字节中找到的一个内嵌 JPEG 区间。
//
// 不变量：
// - End 为开区间，End > Start
// - 同一文件内的区间互不重叠，按 Start 严格递增；Index 顺序等于 Start 顺序
type EmbeddedImage struct {
	Start int
	End   int
	Index int

	// Complete 表示区间以顶层 EOI 结束；否则是遇到新的 SOI 或缓冲区结束时被截断。
	Complete bool

	// HasFrame/HasScan 记录区间内顶层是否出现过 SOFn / SOS 标记。
	HasFrame bool
	HasScan  bool
}

// Len 返回区间字节数。
func (im EmbeddedImage) Len() int { return im.End - im.Start }

package domain

// RawFile 描述一次发现得到的输入文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - RelPath 相对于发现它的输入目录；显式给出的文件只保留文件名
// - 发现阶段只做 stat；文件不存在时 Size/ModUnix 为 0，由执行阶段报告 acquire_failed
type RawFile struct {
	AbsPath string
	RelPath string
	Base    string // filename without ext，即输出命名用的 stem
	Ext     string // ".cr2"（小写）
	Size    int64
	ModUnix int64
}

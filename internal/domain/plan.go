package domain

// FilePlan 规划一个输入文件的输出位置（只描述目标；真正写入由执行阶段负责）。
type FilePlan struct {
	File RawFile

	OutDir string
	Stem   string

	// Conflict 非空表示该文件与其他输入共享同一输出目标，执行阶段直接判为失败。
	Conflict string
}

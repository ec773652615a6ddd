package planner

import (
	"path/filepath"

	"github.com/John-Robertt/jpgfromraw/internal/domain"
)

// PlanFiles 为每个输入生成确定性的输出位置（不做任何写入）。
//
// - outputDir 为空：输出与输入同目录
// - outputDir 非空：输出到 outputDir/<RelPath 的目录部分>，保留目录展开时的层级
//
// 返回顺序与 files 一致。
func PlanFiles(files []domain.RawFile, outputDir string) []domain.FilePlan {
	plans := make([]domain.FilePlan, 0, len(files))
	for _, f := range files {
		plans = append(plans, domain.FilePlan{
			File:   f,
			OutDir: OutDirFor(f, outputDir),
			Stem:   f.Base,
		})
	}
	return plans
}

// OutDirFor 返回单个文件的输出目录。
func OutDirFor(f domain.RawFile, outputDir string) string {
	if outputDir == "" {
		return filepath.Dir(f.AbsPath)
	}
	sub := filepath.Dir(f.RelPath)
	if sub == "." || filepath.IsAbs(sub) {
		return filepath.Clean(outputDir)
	}
	return filepath.Join(outputDir, sub)
}

package run

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/John-Robertt/jpgfromraw/internal/domain"
	"github.com/John-Robertt/jpgfromraw/internal/extract"
	"github.com/John-Robertt/jpgfromraw/internal/infra/fsx"
	"github.com/John-Robertt/jpgfromraw/internal/infra/imgx"
	"github.com/John-Robertt/jpgfromraw/internal/infra/mmapx"
)

// writeFile 是落盘入口；测试替换它来模拟写入途中的取消。
var writeFile = fsx.WriteFile

// fileTask 处理单个输入：获取视图 -> 扫描 -> 规划 -> 逐张原子写入 -> 释放视图。
type fileTask struct {
	pool   *scanPool
	policy extract.Policy
	mode   fsx.Mode
}

func (t *fileTask) run(p domain.FilePlan) domain.FileResult {
	res := newResult(p)

	if p.Conflict != "" {
		return failResult(res, domain.ErrCodeTargetConflict, p.Conflict)
	}

	v, err := mmapx.Open(p.File.AbsPath)
	if err != nil {
		return failResult(res, domain.ErrCodeAcquireFailed, err.Error())
	}
	// 视图只在本任务内使用；写入都在 Close 之前完成。
	defer v.Close()

	buf := v.Bytes()
	outs := extract.Plan(buf, t.pool.Scan(buf), p.Stem, t.policy)

	var (
		attempted  int
		persisted  int
		failed     int
		conflicts  int
		incomplete int
		firstErr   string
	)
	for _, o := range outs {
		ir := domain.ImageResult{
			Index:    o.Image.Index,
			Start:    o.Image.Start,
			End:      o.Image.End,
			Complete: o.Image.Complete,
			Dst:      filepath.Join(p.OutDir, o.Name),
		}
		if w, h, err := imgx.JPEGSize(o.Bytes); err == nil {
			ir.Width, ir.Height = w, h
		}
		if !o.Image.Complete {
			incomplete++
		}

		if !o.Write {
			ir.Status = domain.ImageStatusSkipped
			ir.ErrorMsg = o.Reason
			res.Images = append(res.Images, ir)
			continue
		}

		attempted++
		err := writeFile(p.OutDir, o.Name, o.Bytes, t.mode)
		switch {
		case err == nil:
			ir.Status = domain.ImageStatusWritten
			persisted++
		case errors.Is(err, os.ErrExist):
			// 已存在视为满足（未开启覆盖时不动原文件）。
			ir.Status = domain.ImageStatusExists
			persisted++
		default:
			ir.Status = domain.ImageStatusFailed
			ir.ErrorMsg = err.Error()
			failed++
			if fsx.IsPathTypeConflict(err) {
				conflicts++
			}
			if firstErr == "" {
				firstErr = fmt.Sprintf("写入 %s 失败：%v", o.Name, err)
			}
		}
		res.Images = append(res.Images, ir)
	}

	switch {
	case failed > 0 && persisted == 0:
		code := domain.ErrCodeWriteFailed
		if conflicts == failed {
			code = domain.ErrCodeTargetConflict
		}
		return failResult(res, code, firstErr)
	case failed > 0:
		// 已写出的图片保留，不回滚。
		res.Status = domain.StatusPartial
		res.ErrorCode = domain.ErrCodeWriteFailed
		res.ErrorMsg = fmt.Sprintf("%d/%d 张写入失败；%s", failed, attempted, firstErr)
	case incomplete > 0:
		res.Status = domain.StatusPartial
		res.ErrorCode = domain.ErrCodeIncompleteImage
		res.ErrorMsg = fmt.Sprintf("%d/%d 张图片不完整（缺少 EOI）", incomplete, len(outs))
	default:
		res.Status = domain.StatusSucceeded
	}
	return res
}

func newResult(p domain.FilePlan) domain.FileResult {
	return domain.FileResult{
		Src:    p.File.AbsPath,
		Rel:    p.File.RelPath,
		Images: []domain.ImageResult{},
	}
}

func failResult(res domain.FileResult, code, msg string) domain.FileResult {
	res.Status = domain.StatusFailed
	res.ErrorCode = code
	res.ErrorMsg = msg
	return res
}

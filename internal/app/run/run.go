package run

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/jpgfromraw/internal/app"
	"github.com/John-Robertt/jpgfromraw/internal/app/planner"
	"github.com/John-Robertt/jpgfromraw/internal/config"
	"github.com/John-Robertt/jpgfromraw/internal/domain"
	"github.com/John-Robertt/jpgfromraw/internal/extract"
	"github.com/John-Robertt/jpgfromraw/internal/infra/fsx"
	"github.com/John-Robertt/jpgfromraw/internal/scan"
)

// Execute 执行一次提取，并返回对外稳定的 RunReport。
// 所有错误都降级为文件级失败（单个文件失败不影响其他文件）。
func Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
//
// 取消语义：ctx 取消后，尚未开始的文件直接记为 canceled 失败（不打开、不写入）；
// 已开始的文件会完整跑完，写入都是临时文件 + 发布，不会留下半写的输出。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Inputs:    append([]string(nil), eff.Inputs...),
		OutputDir: eff.OutputDir,
		StartedAt: started,
	}

	scanStarted := time.Now()
	exclude := make([]string, 0, 2)
	if eff.OutputDir != "" {
		exclude = append(exclude, eff.OutputDir)
	}
	if eff.ReportDir != "" {
		exclude = append(exclude, eff.ReportDir)
	}
	files, walkErrs := scan.Expand(eff.Inputs, scan.Options{
		Extensions: eff.Extensions,
		Exclude:    exclude,
	})
	preset := make([]domain.FileResult, 0, len(walkErrs))
	for _, e := range walkErrs {
		preset = append(preset, syntheticFailed(domain.ErrCodeDiscoverFailed, e.Error()))
	}
	scanDur := time.Since(scanStarted)

	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"files":  len(files),
			"errors": len(walkErrs),
		}, scanDur)
	}

	planStarted := time.Now()
	plans := planner.PlanFiles(files, eff.OutputDir)
	conflicts := app.MarkConflicts(plans)
	planDur := time.Since(planStarted)

	if obs != nil {
		obs.OnPhaseDone("plan", map[string]any{
			"files":     len(plans),
			"conflicts": conflicts,
		}, planDur)
	}

	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}
	scanWorkers := eff.ScanWorkers
	if scanWorkers < 1 {
		scanWorkers = runtime.GOMAXPROCS(0)
	}

	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":      workers,
			"scan_workers": scanWorkers,
			"total_files":  len(plans),
		}, 0)
	}

	pool := newScanPool(scanWorkers)
	task := &fileTask{
		pool: pool,
		policy: extract.Policy{
			KeepIncomplete: eff.KeepIncomplete,
			RequireScan:    eff.RequireScan,
			Select:         eff.Select,
		},
		mode: fsx.NoOverwrite,
	}
	if eff.OverwriteExisting {
		task.mode = fsx.Replace
	}

	agg := newAggregator(obs, len(plans), preset)
	msgs := make(chan message, 2*workers)

	go func() {
		// g.Go 在达到上限时阻塞，所以同时存在的文件任务不超过 workers 个。
		var g errgroup.Group
		g.SetLimit(workers)
		for i := range plans {
			p := plans[i]
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					msgs <- message{kind: msgDone, res: failResult(newResult(p), domain.ErrCodeCanceled, fmt.Sprintf("运行已取消：%v", err))}
					return nil
				}
				oneStarted := time.Now()
				msgs <- message{kind: msgStarted, path: p.File.AbsPath}
				res := task.run(p)
				msgs <- message{kind: msgDone, res: res, dur: time.Since(oneStarted)}
				return nil
			})
		}
		_ = g.Wait()
		pool.Close()
		close(msgs)
	}()

	agg.consume(msgs)

	rr.Files = agg.files
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()

	if obs != nil {
		obs.OnBatchCompleted(agg.sum, rr.FinishedAt.Sub(started))
	}
	return rr
}

func syntheticFailed(code, msg string) domain.FileResult {
	return domain.FileResult{
		Src:       "",
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Images:    []domain.ImageResult{},
	}
}

package run

import (
	"time"

	"github.com/John-Robertt/jpgfromraw/internal/config"
	"github.com/John-Robertt/jpgfromraw/internal/domain"
)

// Observer 用于把“运行进度/阶段/文件结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 文件级事件都由聚合协程按顺序发出；但 CLI 可能另起 ticker 调用 OnProgress，实现仍须并发安全。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnFileStarted 在某个文件真正开始处理时调用（取消后未开始的文件不会触发）。
	OnFileStarted(path string)
	// OnFileCompleted 在文件成功或部分成功时调用；写出的图片数为 res.Written()。
	OnFileCompleted(idx, total int, res domain.FileResult, dur time.Duration)
	// OnFileFailed 在文件失败时调用；错误类别为 res.ErrorCode。
	OnFileFailed(idx, total int, res domain.FileResult, dur time.Duration)
	// OnBatchCompleted 在全部文件都有结果后调用一次。
	OnBatchCompleted(sum domain.BatchSummary, dur time.Duration)
	// OnProgress 用于 keepalive（通常由 CLI 自己 ticker 触发；run 层不强制调用）。
	OnProgress(done, total, ok, partial, fail, active int, elapsed time.Duration)
}

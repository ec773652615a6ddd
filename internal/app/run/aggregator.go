package run

import (
	"time"

	"github.com/John-Robertt/jpgfromraw/internal/domain"
)

type messageKind int

const (
	msgStarted messageKind = iota
	msgDone
)

// message 是文件任务发给聚合协程的唯一通道；汇总计数只在聚合协程里修改。
type message struct {
	kind messageKind
	path string
	res  domain.FileResult
	dur  time.Duration
}

type aggregator struct {
	obs   Observer
	total int

	done  int
	sum   domain.BatchSummary
	files []domain.FileResult
}

// newAggregator 创建聚合器；preset 是执行前就已确定的结果（例如目录遍历失败的合成条目）。
func newAggregator(obs Observer, total int, preset []domain.FileResult) *aggregator {
	a := &aggregator{
		obs:   obs,
		total: total,
		files: make([]domain.FileResult, 0, total+len(preset)),
	}
	for _, r := range preset {
		a.sum.Add(r)
		a.files = append(a.files, r)
	}
	return a
}

// consume 读完 msgs 才返回。
func (a *aggregator) consume(msgs <-chan message) {
	for m := range msgs {
		switch m.kind {
		case msgStarted:
			if a.obs != nil {
				a.obs.OnFileStarted(m.path)
			}
		case msgDone:
			a.done++
			a.sum.Add(m.res)
			a.files = append(a.files, m.res)
			if a.obs == nil {
				continue
			}
			if m.res.Status == domain.StatusFailed {
				a.obs.OnFileFailed(a.done, a.total, m.res, m.dur)
			} else {
				a.obs.OnFileCompleted(a.done, a.total, m.res, m.dur)
			}
		}
	}
}

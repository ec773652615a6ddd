package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// 文件级状态。
const (
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// 单张图片的状态。
const (
	ImageStatusWritten = "written"
	ImageStatusExists  = "exists"
	ImageStatusSkipped = "skipped"
	ImageStatusFailed  = "failed"
)

const (
	ErrCodeAcquireFailed      = "acquire_failed"
	ErrCodeWriteFailed        = "write_failed"
	ErrCodeIncompleteImage    = "incomplete_image"
	ErrCodeTargetConflict     = "target_conflict"
	ErrCodeCanceled           = "canceled"
	ErrCodeDiscoverFailed     = "discover_failed"
	ErrCodeConfigNotFound     = "config_not_found"
	ErrCodeConfigInvalid      = "config_invalid"
	ErrCodeConfigMissingInput = "config_missing_input"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	RunID     string   `json:"run_id"`
	Inputs    []string `json:"inputs"`
	OutputDir string   `json:"output_dir"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary BatchSummary `json:"summary"`
	Files   []FileResult `json:"files"`
}

// BatchSummary 统计文件级结果；零图片文件计入 Succeeded。
type BatchSummary struct {
	Succeeded int `json:"succeeded"`
	Partial   int `json:"partial"`
	Failed    int `json:"failed"`
	Images    int `json:"images"`
}

// Add 按文件状态累加一条结果。Images 只统计真正写出的图片。
func (s *BatchSummary) Add(res FileResult) {
	switch res.Status {
	case StatusSucceeded:
		s.Succeeded++
	case StatusPartial:
		s.Partial++
	case StatusFailed:
		s.Failed++
	}
	s.Images += res.Written()
}

// OK 当且仅当没有文件失败。
func (s BatchSummary) OK() bool { return s.Failed == 0 }

// FileResult 是一个输入文件的处理结果，每个输入恰好一条。
type FileResult struct {
	Src string `json:"src"`
	Rel string `json:"rel"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Images []ImageResult `json:"images"`
}

// Written 返回已落盘的图片数（本次写出，不含已存在而跳过的）。
func (r FileResult) Written() int {
	n := 0
	for _, im := range r.Images {
		if im.Status == ImageStatusWritten {
			n++
		}
	}
	return n
}

type ImageResult struct {
	Index    int  `json:"index"`
	Start    int  `json:"start"`
	End      int  `json:"end"`
	Complete bool `json:"complete"`

	Dst      string `json:"dst"`
	Status   string `json:"status"`
	ErrorMsg string `json:"error_msg,omitempty"`

	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) files 稳定排序：按 src 字典序；src=="" 的合成条目排在最后
// 3) summary 由 files 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Inputs == nil {
		r.Inputs = []string{}
	}
	if r.Files == nil {
		r.Files = []FileResult{}
	}

	sort.SliceStable(r.Files, func(i, j int) bool {
		a := r.Files[i].Src
		b := r.Files[j].Src
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s BatchSummary
	for i := range r.Files {
		if r.Files[i].Images == nil {
			r.Files[i].Images = []ImageResult{}
		}
		s.Add(r.Files[i])
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}

package app

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/jpgfromraw/internal/domain"
)

// TargetKey 是输出目标的比较键：OutDir + stem，stem 大小写不敏感
// （macOS/Windows 默认文件系统不区分大小写，IMG_1.CR2 与 img_1.nef 会写到同一个文件）。
func TargetKey(p domain.FilePlan) string {
	return filepath.Join(filepath.Clean(p.OutDir), strings.ToLower(p.Stem))
}

// GroupByTarget 把规划按输出目标分组（TargetGroup 只存 plan index）。
//
// - groups 稳定排序：按 Key 字典序
// - group 内 FileIdx 稳定排序：按 AbsPath 字典序
func GroupByTarget(plans []domain.FilePlan) []domain.TargetGroup {
	index := make(map[string]int, len(plans))
	groups := make([]domain.TargetGroup, 0, len(plans))

	for i := range plans {
		k := TargetKey(plans[i])
		if idx, ok := index[k]; ok {
			groups[idx].FileIdx = append(groups[idx].FileIdx, i)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, domain.TargetGroup{Key: k, FileIdx: []int{i}})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	for i := range groups {
		sort.Slice(groups[i].FileIdx, func(a, b int) bool {
			ia := groups[i].FileIdx[a]
			ib := groups[i].FileIdx[b]
			return plans[ia].File.AbsPath < plans[ib].File.AbsPath
		})
	}
	return groups
}

// MarkConflicts 给可能写到同一个输出文件的规划填上 Conflict 说明，返回冲突文件数。
// 冲突双方都不执行：谁先写谁赢会让结果依赖调度顺序。
//
// 两类冲突：
// - 同一 OutDir 下 stem 相同（大小写不敏感）
// - stem 形如 T_<n>，而同一 OutDir 下有 stem 为 T 的输入：T 含多张图片时会写出 T_<n>.jpg。
//   T 的图片数要扫描后才知道，这里按最坏情况判定，保证结果在执行前就已确定。
func MarkConflicts(plans []domain.FilePlan) int {
	peers := make(map[int]map[int]struct{})
	link := func(a, b int) {
		if a == b {
			return
		}
		for _, x := range [][2]int{{a, b}, {b, a}} {
			if peers[x[0]] == nil {
				peers[x[0]] = make(map[int]struct{})
			}
			peers[x[0]][x[1]] = struct{}{}
		}
	}

	byKey := make(map[string][]int, len(plans))
	for _, g := range GroupByTarget(plans) {
		byKey[g.Key] = g.FileIdx
		for _, i := range g.FileIdx {
			for _, j := range g.FileIdx {
				link(i, j)
			}
		}
	}
	for i := range plans {
		base, ok := splitIndexSuffix(strings.ToLower(plans[i].Stem))
		if !ok {
			continue
		}
		for _, j := range byKey[filepath.Join(filepath.Clean(plans[i].OutDir), base)] {
			link(i, j)
		}
	}

	n := 0
	for idx := range plans {
		if len(peers[idx]) == 0 {
			continue
		}
		others := make([]string, 0, len(peers[idx]))
		for j := range peers[idx] {
			others = append(others, plans[j].File.AbsPath)
		}
		sort.Strings(others)
		plans[idx].Conflict = fmt.Sprintf("与 %v 的输出文件名重合（目录 %s）；请改名或分开输出目录", others, plans[idx].OutDir)
		n++
	}
	return n
}

// splitIndexSuffix 把 "t_3" 拆成 ("t", true)。后缀必须是 OutputName 会生成的十进制序号（无前导 0）。
func splitIndexSuffix(stem string) (string, bool) {
	i := strings.LastIndexByte(stem, '_')
	if i <= 0 || i == len(stem)-1 {
		return "", false
	}
	digits := stem[i+1:]
	if len(digits) > 1 && digits[0] == '0' {
		return "", false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return stem[:i], true
}

package domain

// TargetGroup 是按输出目标（OutDir + stem，大小写不敏感）聚合后的单元。
// 只保存文件下标（指向 []FilePlan），避免复制大结构体。
//
// len(FileIdx) > 1 表示多个输入会写出同名文件，属于 target_conflict。
type TargetGroup struct {
	Key     string
	FileIdx []int
}

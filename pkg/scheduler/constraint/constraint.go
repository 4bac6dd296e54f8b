// Package constraint 定义排课规则接口、约束模型和占用索引
package constraint

import (
	"github.com/kebiao/kebiao/pkg/model"
)

// Type 规则类型标识
type Type string

const (
	TypeRestriction Type = "restriction"  // 规则1：节次未被预约封锁
	TypeScopeFree   Type = "scope_free"   // 规则2：班级/分组该节次空闲
	TypeTeacherFree Type = "teacher_free" // 规则3：教师全局空闲且可用
	TypeRoomFree    Type = "room_free"    // 规则4：教室全局空闲且类型匹配
	TypeContiguity  Type = "contiguity"   // 规则5：连堂不跨越课间/午休
	TypeWorkload    Type = "workload"     // 规则6：不超过教师周课时上限
)

// OverrideRule 规则对应的放宽标记，无对应标记时返回空
func (t Type) OverrideRule() model.OverrideRule {
	switch t {
	case TypeWorkload:
		return model.RuleWorkload
	case TypeContiguity:
		return model.RuleContiguity
	}
	return ""
}

// Category 规则类别
type Category string

const (
	CategoryHard Category = "hard" // 硬约束（必须满足）
	CategorySoft Category = "soft" // 软约束（可被放宽）
)

// Rule 排课规则接口
type Rule interface {
	// Name 返回规则名称
	Name() string

	// Type 返回规则类型
	Type() Type

	// Category 返回规则类别
	Category() Category

	// Weight 返回规则权重 (1-100)，决定检查顺序
	Weight() int

	// Check 检查候选位置是否满足规则
	Check(ctx *Context, p *Placement) (ok bool, reason string)
}

// Placement 候选排课位置
type Placement struct {
	DivisionID       string         `json:"division_id"`
	Year             string         `json:"year"`
	Batch            model.Batch    `json:"batch"`
	SubjectID        string         `json:"subject_id"`
	TeacherID        string         `json:"teacher_id"`
	RoomID           string         `json:"room_id"`
	RequiredRoomType model.RoomType `json:"required_room_type"`
	GroupSize        int            `json:"group_size"`
	Day              int            `json:"day"`
	Slot             int            `json:"slot"`
	Length           int            `json:"length"`
	Cells            []int          `json:"cells"` // 占用的节次号
}

// ToEntry 将候选位置转换为课表条目
func (p *Placement) ToEntry() *model.TimetableEntry {
	return &model.TimetableEntry{
		Year:         p.Year,
		DivisionID:   p.DivisionID,
		Day:          p.Day,
		TimeSlot:     p.Slot,
		SubjectID:    p.SubjectID,
		TeacherID:    p.TeacherID,
		RoomID:       p.RoomID,
		RoomType:     p.RequiredRoomType,
		Batch:        p.Batch,
		IsLabSession: p.RequiredRoomType == model.RoomLab,
		Duration:     p.Length,
	}
}

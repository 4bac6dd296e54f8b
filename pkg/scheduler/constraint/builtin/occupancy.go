package builtin

import (
	"fmt"

	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// ScopeFreeRule 规则2：班级/分组在该节次空闲
type ScopeFreeRule struct {
	*BaseRule
}

// NewScopeFreeRule 创建班级空闲规则
func NewScopeFreeRule() *ScopeFreeRule {
	return &ScopeFreeRule{
		BaseRule: NewBaseRule("班级空闲", constraint.TypeScopeFree, constraint.CategoryHard, 90),
	}
}

// Check 检查班级分组占用
func (r *ScopeFreeRule) Check(ctx *constraint.Context, p *constraint.Placement) (bool, string) {
	for _, slot := range cells(ctx, p) {
		if ctx.ScopeBusy(p.DivisionID, p.Batch, p.Day, slot) {
			return false, fmt.Sprintf("班级 %s/%s 第%d天第%d节已有课", p.DivisionID, p.Batch, p.Day, slot)
		}
	}
	return true, ""
}

// TeacherFreeRule 规则3：教师全局空闲且可用
type TeacherFreeRule struct {
	*BaseRule
}

// NewTeacherFreeRule 创建教师空闲规则
func NewTeacherFreeRule() *TeacherFreeRule {
	return &TeacherFreeRule{
		BaseRule: NewBaseRule("教师空闲", constraint.TypeTeacherFree, constraint.CategoryHard, 85),
	}
}

// Check 检查教师占用与不可用时段
func (r *TeacherFreeRule) Check(ctx *constraint.Context, p *constraint.Placement) (bool, string) {
	teacher := ctx.Model.Teacher(p.TeacherID)
	if teacher == nil {
		return false, fmt.Sprintf("教师 %s 不存在", p.TeacherID)
	}
	for _, slot := range cells(ctx, p) {
		if !teacher.IsAvailable(p.Day, slot) {
			return false, fmt.Sprintf("教师 %s 第%d天第%d节不可用", teacher.Name, p.Day, slot)
		}
		if ctx.TeacherBusy(p.TeacherID, p.Day, slot) {
			return false, fmt.Sprintf("教师 %s 第%d天第%d节已有课", teacher.Name, p.Day, slot)
		}
	}
	return true, ""
}

// RoomFreeRule 规则4：教室全局空闲且类型匹配
type RoomFreeRule struct {
	*BaseRule
}

// NewRoomFreeRule 创建教室空闲规则
func NewRoomFreeRule() *RoomFreeRule {
	return &RoomFreeRule{
		BaseRule: NewBaseRule("教室空闲", constraint.TypeRoomFree, constraint.CategoryHard, 80),
	}
}

// Check 检查教室类型、容量与占用
func (r *RoomFreeRule) Check(ctx *constraint.Context, p *constraint.Placement) (bool, string) {
	room := ctx.Model.Room(p.RoomID)
	if room == nil {
		return false, fmt.Sprintf("教室 %s 不存在", p.RoomID)
	}
	if p.RequiredRoomType != "" && room.Type != p.RequiredRoomType {
		return false, fmt.Sprintf("教室 %s 类型为 %s，需要 %s", room.Name, room.Type, p.RequiredRoomType)
	}
	if p.GroupSize > 0 && room.Capacity > 0 && room.Capacity < p.GroupSize {
		return false, fmt.Sprintf("教室 %s 容量 %d 小于人数 %d", room.Name, room.Capacity, p.GroupSize)
	}
	for _, slot := range cells(ctx, p) {
		if ctx.RoomBusy(p.RoomID, p.Day, slot) {
			return false, fmt.Sprintf("教室 %s 第%d天第%d节已被占用", room.Name, p.Day, slot)
		}
	}
	return true, ""
}

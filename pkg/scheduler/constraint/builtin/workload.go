package builtin

import (
	"fmt"

	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// WorkloadRule 规则6：不超过教师周课时上限
type WorkloadRule struct {
	*BaseRule
}

// NewWorkloadRule 创建周课时规则
func NewWorkloadRule() *WorkloadRule {
	return &WorkloadRule{
		BaseRule: NewBaseRule("周课时上限", constraint.TypeWorkload, constraint.CategorySoft, 70),
	}
}

// Check 检查安排后教师周课时
func (r *WorkloadRule) Check(ctx *constraint.Context, p *constraint.Placement) (bool, string) {
	teacher := ctx.Model.Teacher(p.TeacherID)
	if teacher == nil || teacher.MaxLoad <= 0 {
		return true, ""
	}
	length := p.Length
	if length < 1 {
		length = 1
	}
	load := ctx.TeacherLoad(p.TeacherID) + length
	if load > teacher.MaxLoad {
		return false, fmt.Sprintf("教师 %s 周课时 %d 将超过上限 %d", teacher.Name, load, teacher.MaxLoad)
	}
	return true, ""
}

package builtin

import (
	"fmt"

	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// ContiguityRule 规则5：连续节次不跨越课间/午休
// 单节课同样要求起始节次为上课节次
type ContiguityRule struct {
	*BaseRule
}

// NewContiguityRule 创建连堂规则
func NewContiguityRule() *ContiguityRule {
	return &ContiguityRule{
		BaseRule: NewBaseRule("连堂完整", constraint.TypeContiguity, constraint.CategoryHard, 100),
	}
}

// Check 检查连续节次
func (r *ContiguityRule) Check(ctx *constraint.Context, p *constraint.Placement) (bool, string) {
	if !ctx.Model.IsWorkingDay(p.Day) {
		return false, fmt.Sprintf("第%d天不是工作日", p.Day)
	}
	length := p.Length
	if length < 1 {
		length = 1
	}
	if _, ok := ctx.Model.Grid.Run(p.Slot, length); !ok {
		return false, fmt.Sprintf("第%d天从第%d节起无法连续安排%d节", p.Day, p.Slot, length)
	}
	return true, ""
}

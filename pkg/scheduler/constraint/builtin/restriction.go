package builtin

import (
	"fmt"

	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// RestrictionRule 规则1：节次未被预约封锁
type RestrictionRule struct {
	*BaseRule
}

// NewRestrictionRule 创建预约封锁规则
func NewRestrictionRule() *RestrictionRule {
	return &RestrictionRule{
		BaseRule: NewBaseRule("预约封锁", constraint.TypeRestriction, constraint.CategoryHard, 95),
	}
}

// Check 检查候选位置的每个节次
func (r *RestrictionRule) Check(ctx *constraint.Context, p *constraint.Placement) (bool, string) {
	for _, slot := range cells(ctx, p) {
		if b := ctx.Restrictions.BlockingBooking(slot, p.Day, p.Year); b != nil {
			reason := b.Reason
			if reason == "" {
				reason = string(b.Scope)
			}
			return false, fmt.Sprintf("第%d天第%d节已被预约（%s）", p.Day, slot, reason)
		}
	}
	return true, ""
}

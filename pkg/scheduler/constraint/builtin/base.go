// Package builtin 提供内置排课规则实现
package builtin

import (
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// BaseRule 规则基类
type BaseRule struct {
	name     string
	typ      constraint.Type
	category constraint.Category
	weight   int
}

// NewBaseRule 创建基础规则
func NewBaseRule(name string, typ constraint.Type, cat constraint.Category, weight int) *BaseRule {
	return &BaseRule{
		name:     name,
		typ:      typ,
		category: cat,
		weight:   weight,
	}
}

// Name 返回规则名称
func (r *BaseRule) Name() string { return r.name }

// Type 返回规则类型
func (r *BaseRule) Type() constraint.Type { return r.typ }

// Category 返回规则类别
func (r *BaseRule) Category() constraint.Category { return r.category }

// Weight 返回规则权重
func (r *BaseRule) Weight() int { return r.weight }

// cells 候选位置占用的节次，未预先计算时按节次表推导
func cells(ctx *constraint.Context, p *constraint.Placement) []int {
	if len(p.Cells) > 0 {
		return p.Cells
	}
	length := p.Length
	if length < 1 {
		length = 1
	}
	return ctx.Model.Grid.Cover(p.Slot, length)
}

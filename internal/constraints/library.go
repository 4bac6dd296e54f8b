// Package constraints 排课规则目录
package constraints

import (
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint/builtin"
)

// RuleDefinition 规则定义
type RuleDefinition struct {
	Name        string             `json:"name"`
	DisplayName string             `json:"display_name"`
	Type        string             `json:"type"` // hard 硬约束, soft 软约束
	Weight      int                `json:"weight"`
	Order       int                `json:"order"` // 检查顺序，从 1 开始
	Description string             `json:"description"`
	Override    model.OverrideRule `json:"override,omitempty"` // 可通过 override 放宽
}

// LibraryResponse 规则目录响应
type LibraryResponse struct {
	Library []RuleDefinition       `json:"library"`
	Summary map[string]interface{} `json:"summary"`
}

var descriptions = map[constraint.Type]string{
	constraint.TypeContiguity:  "连堂课的各节必须相邻且不跨越课间或午休，零散课时节次必须可排课。",
	constraint.TypeRestriction: "节次未被该年级或全校的预约限制封锁。",
	constraint.TypeScopeFree:   "班级对应分组在该节次空闲，ALL 与所有子分组互斥，不同子分组可并行。",
	constraint.TypeTeacherFree: "教师在该节次没有任何班级的课，且该日在其可用日内。",
	constraint.TypeRoomFree:    "教室在该节次未被占用，类型与课程要求一致且容量足够。",
	constraint.TypeWorkload:    "安排后教师周课时不超过其上限。",
}

// GetLibrary 按检查顺序返回当前生效的排课规则
func GetLibrary() []RuleDefinition {
	return describe(builtin.NewDefaultManager())
}

// GetLibraryResponse 返回规则目录及摘要
func GetLibraryResponse() LibraryResponse {
	m := builtin.NewDefaultManager()
	return LibraryResponse{
		Library: describe(m),
		Summary: m.Summary(),
	}
}

func describe(m *constraint.Manager) []RuleDefinition {
	rules := m.GetAll()
	out := make([]RuleDefinition, 0, len(rules))
	for i, r := range rules {
		out = append(out, RuleDefinition{
			Name:        string(r.Type()),
			DisplayName: r.Name(),
			Type:        string(r.Category()),
			Weight:      r.Weight(),
			Order:       i + 1,
			Description: descriptions[r.Type()],
			Override:    r.Type().OverrideRule(),
		})
	}
	return out
}

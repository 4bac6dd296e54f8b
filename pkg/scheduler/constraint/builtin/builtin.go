package builtin

import (
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// RegisterDefaultRules 注册六条排课规则
// 检查顺序：连堂 -> 预约封锁 -> 班级空闲 -> 教师 -> 教室 -> 周课时
func RegisterDefaultRules(manager *constraint.Manager) {
	manager.Register(NewContiguityRule())
	manager.Register(NewRestrictionRule())
	manager.Register(NewScopeFreeRule())
	manager.Register(NewTeacherFreeRule())
	manager.Register(NewRoomFreeRule())
	manager.Register(NewWorkloadRule())
}

// NewDefaultManager 创建注册了默认规则的管理器
func NewDefaultManager() *constraint.Manager {
	m := constraint.NewManager()
	RegisterDefaultRules(m)
	return m
}

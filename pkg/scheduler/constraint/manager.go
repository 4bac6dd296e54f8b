package constraint

import (
	"fmt"
	"sort"
	"sync"
)

// Manager 规则管理器
type Manager struct {
	rules []Rule
	mu    sync.RWMutex
}

// NewManager 创建规则管理器
func NewManager() *Manager {
	return &Manager{
		rules: make([]Rule, 0),
	}
}

// Register 注册规则，同类型规则会被替换
func (m *Manager) Register(r Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.rules {
		if existing.Type() == r.Type() {
			m.rules[i] = r
			return
		}
	}

	m.rules = append(m.rules, r)

	// 硬约束在前，权重高的在前
	sort.SliceStable(m.rules, func(i, j int) bool {
		ri, rj := m.rules[i], m.rules[j]
		if ri.Category() != rj.Category() {
			return ri.Category() == CategoryHard
		}
		return ri.Weight() > rj.Weight()
	})
}

// GetAll 获取所有规则
func (m *Manager) GetAll() []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Rule, len(m.rules))
	copy(result, m.rules)
	return result
}

// CanPlace 检查候选位置，relaxed 中的规则类型被跳过
// 返回第一个未通过的规则类型和原因
func (m *Manager) CanPlace(ctx *Context, p *Placement, relaxed ...Type) (bool, Type, string) {
	for _, r := range m.GetAll() {
		if isRelaxed(r.Type(), relaxed) {
			continue
		}
		if ok, reason := r.Check(ctx, p); !ok {
			return false, r.Type(), fmt.Sprintf("%s: %s", r.Name(), reason)
		}
	}
	return true, "", ""
}

func isRelaxed(t Type, relaxed []Type) bool {
	for _, r := range relaxed {
		if r == t {
			return true
		}
	}
	return false
}

// Count 返回规则数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// Summary 返回规则摘要
func (m *Manager) Summary() map[string]interface{} {
	rules := m.GetAll()
	types := make([]string, 0, len(rules))
	for _, r := range rules {
		types = append(types, string(r.Type()))
	}

	return map[string]interface{}{
		"total": m.Count(),
		"hard":  len(m.GetByCategory(CategoryHard)),
		"soft":  len(m.GetByCategory(CategorySoft)),
		"order": types,
	}
}

// GetByCategory 按类别获取规则
func (m *Manager) GetByCategory(cat Category) []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Rule
	for _, r := range m.rules {
		if r.Category() == cat {
			result = append(result, r)
		}
	}
	return result
}

// Package resolution 处理对已检测冲突的解决操作
package resolution

import (
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/restriction"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/solver"
	"github.com/kebiao/kebiao/pkg/validator"
)

// Action 解决操作
type Action string

const (
	ActionIgnore       Action = "ignore"            // 忽略，不修改条目
	ActionAutoResolve  Action = "auto_resolve"      // 自动重新安排
	ActionManualReview Action = "manual_review"     // 标记为人工处理
	ActionRelax        Action = "relax_constraints" // 放宽周课时或连堂要求
)

// Valid 是否为已知操作
func (a Action) Valid() bool {
	switch a {
	case ActionIgnore, ActionAutoResolve, ActionManualReview, ActionRelax:
		return true
	}
	return false
}

// State 冲突状态
type State string

const (
	StateDetected     State = "detected"
	StateIgnored      State = "ignored"
	StateAutoResolved State = "auto_resolved"
	StateManualReview State = "manual_review"
	StateRelaxApplied State = "relax_applied"
)

// Item 带状态的冲突
type Item struct {
	Index int `json:"index"`
	validator.Conflict
	State State `json:"state"`
}

// Workspace 一次检测/解决会话的条目快照
// 在一批解决操作内条目只会被修改或追加，不会被删除，冲突中的条目下标保持有效
type Workspace struct {
	Model    *constraint.Model
	Blocker  restriction.Blocker
	Entries  []*model.TimetableEntry
	Unplaced []solver.Unplaced

	conflicts []validator.Conflict
	states    map[string]State // 按冲突指纹
	changed   map[string]model.Scope
}

// NewWorkspace 创建工作区，调用方需随后执行一次检测
func NewWorkspace(m *constraint.Model, blocker restriction.Blocker, entries []*model.TimetableEntry, unplaced []solver.Unplaced) *Workspace {
	return &Workspace{
		Model:    m,
		Blocker:  blocker,
		Entries:  entries,
		Unplaced: append([]solver.Unplaced(nil), unplaced...),
		states:   make(map[string]State),
		changed:  make(map[string]model.Scope),
	}
}

// Conflicts 当前冲突列表
func (w *Workspace) Conflicts() []validator.Conflict {
	return w.conflicts
}

// Items 当前冲突及其状态
func (w *Workspace) Items() []Item {
	items := make([]Item, len(w.conflicts))
	for i, c := range w.conflicts {
		items[i] = Item{Index: i, Conflict: c, State: w.StateOf(c.Fingerprint)}
	}
	return items
}

// present 冲突是否仍在当前检测结果中
func (w *Workspace) present(fingerprint string) bool {
	for _, c := range w.conflicts {
		if c.Fingerprint == fingerprint {
			return true
		}
	}
	return false
}

// StateOf 冲突状态，未记录时为 detected
func (w *Workspace) StateOf(fingerprint string) State {
	if s, ok := w.states[fingerprint]; ok {
		return s
	}
	return StateDetected
}

// ActiveCount 未被忽略且未转人工处理的冲突数
func (w *Workspace) ActiveCount() int {
	n := 0
	for _, c := range w.conflicts {
		switch w.StateOf(c.Fingerprint) {
		case StateIgnored, StateManualReview, StateAutoResolved, StateRelaxApplied:
		default:
			n++
		}
	}
	return n
}

// Changed 被修改过的课表范围
func (w *Workspace) Changed() []model.Scope {
	out := make([]model.Scope, 0, len(w.changed))
	for _, s := range w.changed {
		out = append(out, s)
	}
	sortScopes(out)
	return out
}

// EntriesFor 返回某范围的条目
func (w *Workspace) EntriesFor(scope model.Scope) []*model.TimetableEntry {
	var out []*model.TimetableEntry
	for _, e := range w.Entries {
		if e.Scope() == scope {
			out = append(out, e)
		}
	}
	return out
}

func (w *Workspace) markChanged(e *model.TimetableEntry) {
	s := e.Scope()
	w.changed[s.Key()] = s
}

func (w *Workspace) input() validator.Input {
	return validator.Input{
		Model:    w.Model,
		Blocker:  w.Blocker,
		Entries:  w.Entries,
		Unplaced: w.Unplaced,
	}
}

// refresh 重新检测
// 冲突消失后忽略和人工处理状态失效，已解决状态保留；
// reset 为 true 时仍存在的冲突只保留人工处理状态
func (w *Workspace) refresh(d *validator.ConflictDetector, reset bool) {
	w.conflicts = d.Detect(w.input())
	present := make(map[string]bool, len(w.conflicts))
	for _, c := range w.conflicts {
		present[c.Fingerprint] = true
	}
	for fp, s := range w.states {
		switch {
		case present[fp] && reset && s != StateManualReview:
			delete(w.states, fp)
		case !present[fp] && (s == StateIgnored || s == StateManualReview):
			delete(w.states, fp)
		}
	}
}

func (w *Workspace) removeUnplaced(key string) {
	for i := range w.Unplaced {
		if w.Unplaced[i].Key() == key {
			w.Unplaced = append(w.Unplaced[:i], w.Unplaced[i+1:]...)
			return
		}
	}
}

// Reload 替换条目快照，保留冲突状态，调用方需随后重新检测
func (w *Workspace) Reload(m *constraint.Model, blocker restriction.Blocker, entries []*model.TimetableEntry, unplaced []solver.Unplaced) {
	w.Model = m
	w.Blocker = blocker
	w.Entries = entries
	w.Unplaced = append([]solver.Unplaced(nil), unplaced...)
	w.changed = make(map[string]model.Scope)
}

// ResetChanged 清空修改记录（修改已持久化后调用）
func (w *Workspace) ResetChanged() {
	w.changed = make(map[string]model.Scope)
}

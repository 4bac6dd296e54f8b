// Package restriction 提供固定预约（节次封锁）的注册与查询
package restriction

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
)

// Blocker 节次封锁查询接口
type Blocker interface {
	IsBlocked(slot, day int, year string) bool
	BlockingBooking(slot, day int, year string) *model.Restriction
}

var validate = validator.New()

// Registry 预约限制注册表
type Registry struct {
	items []*model.Restriction
	seq   int64
	mu    sync.RWMutex
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{items: make([]*model.Restriction, 0)}
}

// Register 注册新的限制
// 若与已有全局限制的 (节次, 天) 集合完全相同且优先级不高于它，返回 RESTRICTION_CONFLICT
func (r *Registry) Register(res *model.Restriction) error {
	if err := Validate(res); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if !existing.IsGlobal() || !existing.SameCells(res) {
			continue
		}
		if res.Priority <= existing.Priority {
			return errors.RestrictionConflict(existing.ID.String(),
				fmt.Sprintf("相同节次已被优先级 %d 的全局限制占用，新限制优先级 %d", existing.Priority, res.Priority))
		}
	}

	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	now := time.Now()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now
	r.seq++
	res.Seq = r.seq

	r.items = append(r.items, res)
	return nil
}

// Load 从存储批量加载限制，不做冲突检查
func (r *Registry) Load(items []*model.Restriction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := append([]*model.Restriction(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Seq != sorted[j].Seq {
			return sorted[i].Seq < sorted[j].Seq
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	for _, res := range sorted {
		if res.Seq <= r.seq {
			r.seq++
			res.Seq = r.seq
		} else {
			r.seq = res.Seq
		}
		r.items = append(r.items, res)
	}
}

// IsBlocked 某年级在某天某节是否被封锁
func (r *Registry) IsBlocked(slot, day int, year string) bool {
	return r.BlockingBooking(slot, day, year) != nil
}

// BlockingBooking 返回封锁该节次的限制
// 全局限制优先，其次优先级高者，再取创建时间最新的，创建时间相同时取后注册的
func (r *Registry) BlockingBooking(slot, day int, year string) *model.Restriction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *model.Restriction
	for _, res := range r.items {
		if !res.Covers(slot, day, year) {
			continue
		}
		if best == nil || dominates(res, best) {
			best = res
		}
	}
	return best
}

// dominates a 是否应排在 b 之前
func dominates(a, b *model.Restriction) bool {
	if a.IsGlobal() != b.IsGlobal() {
		return a.IsGlobal()
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Seq > b.Seq
}

// All 返回所有限制
func (r *Registry) All() []*model.Restriction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Restriction, len(r.items))
	copy(result, r.items)
	return result
}

// Remove 移除限制（仅用于撤销未能持久化的注册）
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, res := range r.items {
		if res.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return true
		}
	}
	return false
}

// Count 返回限制数量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Snapshot 返回只读副本，供一次生成或检测使用
func (r *Registry) Snapshot() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*model.Restriction, len(r.items))
	for i, res := range r.items {
		c := *res
		c.Years = append([]string(nil), res.Years...)
		c.Slots = append([]int(nil), res.Slots...)
		c.Days = append([]int(nil), res.Days...)
		items[i] = &c
	}
	return &Registry{items: items, seq: r.seq}
}

// Validate 检查限制字段
func Validate(res *model.Restriction) error {
	if res == nil {
		return errors.InvalidInput("restriction", "不能为空")
	}
	ve := &errors.ValidationErrors{}
	if err := validate.Struct(res); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				ve.Add(fe.Namespace(), fe.Tag())
			}
		} else {
			ve.Add("restriction", err.Error())
		}
	}
	if res.Scope == model.ScopeYear && len(res.Years) == 0 {
		ve.Add("years", "年级限制必须指定年级")
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

package model

import "sort"

// RestrictionScope 预约限制范围
type RestrictionScope string

const (
	ScopeGlobal RestrictionScope = "global" // 所有年级
	ScopeYear   RestrictionScope = "year"   // 指定年级
)

// Restriction 固定预约（占用节次的限制）
type Restriction struct {
	BaseModel
	Scope    RestrictionScope `json:"scope" db:"scope" validate:"oneof=global year"`
	Years    []string         `json:"years,omitempty" db:"years"`
	Slots    []int            `json:"slots" db:"slots" validate:"required,min=1,dive,min=1"`
	Days     []int            `json:"days" db:"days" validate:"required,min=1,dive,min=0,max=7"` // 包含 DayAll 表示全部工作日
	Priority int              `json:"priority" db:"priority"`
	Reason   string           `json:"reason,omitempty" db:"reason"`
	Seq      int64            `json:"-" db:"seq"` // 注册顺序
}

// IsGlobal 是否为全局限制
func (r *Restriction) IsGlobal() bool {
	return r.Scope == ScopeGlobal
}

// AppliesToYear 限制是否作用于某年级
func (r *Restriction) AppliesToYear(year string) bool {
	if r.IsGlobal() {
		return true
	}
	for _, y := range r.Years {
		if y == year {
			return true
		}
	}
	return false
}

// CoversSlot 是否包含某节次
func (r *Restriction) CoversSlot(slot int) bool {
	for _, s := range r.Slots {
		if s == slot {
			return true
		}
	}
	return false
}

// CoversDay 是否包含某天
func (r *Restriction) CoversDay(day int) bool {
	for _, d := range r.Days {
		if d == DayAll || d == day {
			return true
		}
	}
	return false
}

// Covers 是否封锁某年级在某天某节
func (r *Restriction) Covers(slot, day int, year string) bool {
	return r.AppliesToYear(year) && r.CoversSlot(slot) && r.CoversDay(day)
}

// SameCells 两个限制是否覆盖完全相同的 (节次, 天) 集合
func (r *Restriction) SameCells(other *Restriction) bool {
	return equalSets(r.Slots, other.Slots) && equalSets(normalizeDays(r.Days), normalizeDays(other.Days))
}

func normalizeDays(days []int) []int {
	for _, d := range days {
		if d == DayAll {
			return []int{DayAll}
		}
	}
	return days
}

func equalSets(a, b []int) bool {
	sa, sb := uniqueSorted(a), uniqueSorted(b)
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func uniqueSorted(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}

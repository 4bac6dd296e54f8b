// Package validator 提供课表冲突检测
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/kebiao/kebiao/pkg/scheduler/solver"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictTeacher       ConflictType = "teacher_conflict"        // 教师同一节次有多节课
	ConflictRoom          ConflictType = "room_conflict"           // 教室同一节次被多次占用
	ConflictWorkload      ConflictType = "workload_exceeded"       // 教师周课时超限
	ConflictScheduling    ConflictType = "scheduling_conflict"     // 无法安排或落在封锁节次
	ConflictLabScheduling ConflictType = "lab_scheduling_conflict" // 实验课连堂要求被破坏
)

// conflictTypes 冲突类型的固定顺序
var conflictTypes = []ConflictType{
	ConflictTeacher,
	ConflictRoom,
	ConflictWorkload,
	ConflictScheduling,
	ConflictLabScheduling,
}

// ConflictTypes 返回所有冲突类型
func ConflictTypes() []ConflictType {
	return append([]ConflictType(nil), conflictTypes...)
}

// Valid 是否为已知冲突类型
func (t ConflictType) Valid() bool {
	return t.rank() < len(conflictTypes)
}

func (t ConflictType) rank() int {
	for i, ct := range conflictTypes {
		if ct == t {
			return i
		}
	}
	return len(conflictTypes)
}

// Code 冲突的具体成因
type Code string

const (
	CodeOverlap     Code = "overlap"      // 同一资源时间重叠
	CodeOverload    Code = "overload"     // 周课时超限
	CodeUnplaced    Code = "unplaced"     // 生成时无法安排
	CodeBlocked     Code = "blocked"      // 落在被预约封锁的节次
	CodeInvalidSlot Code = "invalid_slot" // 未知节次、非上课节次或非工作日
	CodeUnavailable Code = "unavailable"  // 教师不可用
	CodeBrokenBlock Code = "broken_block" // 连堂跨越课间/午休
	CodeShortBlock  Code = "short_block"  // 连堂节数不足
	CodeWrongRoom   Code = "wrong_room"   // 实验课不在实验室
	CodeBatchAll    Code = "batch_all"    // 已分组班级的实验课使用 ALL
)

// Conflict 冲突信息
type Conflict struct {
	Type        ConflictType     `json:"type"`
	Code        Code             `json:"code"`
	Description string           `json:"description"`
	Suggestion  string           `json:"suggestion,omitempty"`
	Entries     []int            `json:"entries,omitempty"` // 相关条目下标
	EntryIDs    []uuid.UUID      `json:"entry_ids,omitempty"`
	TeacherID   string           `json:"teacher_id,omitempty"`
	Session     *solver.Unplaced `json:"session,omitempty"` // 无法安排的单元
	Fingerprint string           `json:"fingerprint"`
}

// Visitor 按冲突类型分派处理
type Visitor interface {
	VisitTeacherConflict(c *Conflict) error
	VisitRoomConflict(c *Conflict) error
	VisitWorkloadExceeded(c *Conflict) error
	VisitSchedulingConflict(c *Conflict) error
	VisitLabSchedulingConflict(c *Conflict) error
}

// Accept 将冲突分派给对应的处理方法
func (c *Conflict) Accept(v Visitor) error {
	switch c.Type {
	case ConflictTeacher:
		return v.VisitTeacherConflict(c)
	case ConflictRoom:
		return v.VisitRoomConflict(c)
	case ConflictWorkload:
		return v.VisitWorkloadExceeded(c)
	case ConflictScheduling:
		return v.VisitSchedulingConflict(c)
	case ConflictLabScheduling:
		return v.VisitLabSchedulingConflict(c)
	}
	return fmt.Errorf("未知冲突类型: %s", c.Type)
}

// fingerprint 冲突的稳定标识：类型 + 条目ID 或 单元标识
func (c *Conflict) fingerprint() string {
	var b strings.Builder
	b.WriteString(string(c.Type))
	b.WriteString(":")
	b.WriteString(string(c.Code))
	if c.Session != nil {
		b.WriteString(":")
		b.WriteString(c.Session.Key())
		return b.String()
	}
	if c.TeacherID != "" {
		b.WriteString(":")
		b.WriteString(c.TeacherID)
		return b.String()
	}
	ids := make([]string, len(c.EntryIDs))
	for i, id := range c.EntryIDs {
		ids[i] = id.String()
	}
	sort.Strings(ids)
	for _, id := range ids {
		b.WriteString(":")
		b.WriteString(id)
	}
	return b.String()
}

// CountByType 按类型统计冲突数量
func CountByType(conflicts []Conflict) map[string]int {
	out := make(map[string]int)
	for _, c := range conflicts {
		out[string(c.Type)]++
	}
	return out
}

// sortConflicts 排序：类型 -> 第一个条目 -> 第二个条目 -> 描述
// 没有条目的冲突（无法安排的单元）排在同类型的最后
func sortConflicts(conflicts []Conflict) {
	at := func(c Conflict, i int) int {
		if i < len(c.Entries) {
			return c.Entries[i]
		}
		return int(^uint(0) >> 1)
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if ra, rb := a.Type.rank(), b.Type.rank(); ra != rb {
			return ra < rb
		}
		if x, y := at(a, 0), at(b, 0); x != y {
			return x < y
		}
		if x, y := at(a, 1), at(b, 1); x != y {
			return x < y
		}
		return a.Description < b.Description
	})
}

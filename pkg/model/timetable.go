package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OverrideRule 可被放宽的规则
type OverrideRule string

const (
	RuleWorkload   OverrideRule = "workload"   // 教师周课时上限
	RuleContiguity OverrideRule = "contiguity" // 连堂要求
)

// Override 放宽约束的审计标记
type Override struct {
	Rule         OverrideRule `json:"rule"`
	ConflictType string       `json:"conflict_type"`
	AppliedAt    time.Time    `json:"applied_at"`
	Note         string       `json:"note,omitempty"`
}

// Overrides 以 JSONB 存储的标记列表
type Overrides []Override

// Value 实现 driver.Valuer
func (o Overrides) Value() (driver.Value, error) {
	if o == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o)
}

// Scan 实现 sql.Scanner
func (o *Overrides) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*o = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法解析 overrides 类型 %T", src)
	}
	return json.Unmarshal(data, o)
}

// TimetableEntry 课表条目
type TimetableEntry struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TimetableID  uuid.UUID `json:"timetable_id" db:"timetable_id"`
	Year         string    `json:"year" db:"year"`
	DivisionID   string    `json:"division_id" db:"division_id"`
	Day          int       `json:"day" db:"day"`
	TimeSlot     int       `json:"time_slot" db:"time_slot"` // 起始节次
	SubjectID    string    `json:"subject_id" db:"subject_id"`
	TeacherID    string    `json:"teacher_id" db:"teacher_id"`
	RoomID       string    `json:"room_id" db:"room_id"`
	RoomType     RoomType  `json:"room_type" db:"room_type"`
	Batch        Batch     `json:"batch" db:"batch"`
	IsLabSession bool      `json:"is_lab_session" db:"is_lab_session"`
	Duration     int       `json:"duration" db:"duration"`
	Overrides    Overrides `json:"overrides,omitempty" db:"overrides"`
	Position     int       `json:"-" db:"position"` // 课表内插入顺序
}

// Length 条目占用的节数
func (e *TimetableEntry) Length() int {
	if e.Duration < 1 {
		return 1
	}
	return e.Duration
}

// HasOverride 是否带有某规则的放宽标记
func (e *TimetableEntry) HasOverride(rule OverrideRule) bool {
	for _, o := range e.Overrides {
		if o.Rule == rule {
			return true
		}
	}
	return false
}

// AddOverride 添加放宽标记（同一规则只保留一个）
func (e *TimetableEntry) AddOverride(o Override) {
	if e.HasOverride(o.Rule) {
		return
	}
	e.Overrides = append(e.Overrides, o)
}

// Scope 条目所属课表范围
func (e *TimetableEntry) Scope() Scope {
	return Scope{Year: e.Year, DivisionID: e.DivisionID, Batch: e.Batch}
}

// Scope 课表范围 (年级, 班级, 分组)
type Scope struct {
	Year       string `json:"year" db:"year"`
	DivisionID string `json:"division_id" db:"division_id"`
	Batch      Batch  `json:"batch" db:"batch"`
}

// Key 范围的唯一键
func (s Scope) Key() string {
	return s.Year + "/" + s.DivisionID + "/" + string(s.Batch)
}

// Less 范围的稳定排序
func (s Scope) Less(o Scope) bool {
	if s.Year != o.Year {
		return s.Year < o.Year
	}
	if s.DivisionID != o.DivisionID {
		return s.DivisionID < o.DivisionID
	}
	return s.Batch < o.Batch
}

// Timetable 某范围的一版课表
type Timetable struct {
	BaseModel
	Scope
	RunID       uuid.UUID        `json:"run_id" db:"run_id"`
	Version     int              `json:"version" db:"version"`
	IsActive    bool             `json:"is_active" db:"is_active"`
	GeneratedAt time.Time        `json:"generated_at" db:"generated_at"`
	Entries     []TimetableEntry `json:"entries" db:"-"`
}

// Clone 深拷贝课表
func (t *Timetable) Clone() *Timetable {
	c := *t
	c.Entries = make([]TimetableEntry, len(t.Entries))
	for i, e := range t.Entries {
		e.Overrides = append(Overrides(nil), e.Overrides...)
		c.Entries[i] = e
	}
	return &c
}

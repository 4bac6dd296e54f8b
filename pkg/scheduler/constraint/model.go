package constraint

import (
	"sort"

	"github.com/kebiao/kebiao/pkg/model"
)

// SessionOrder 课时排序策略
type SessionOrder string

const (
	OrderLabsFirst  SessionOrder = "labs_first"  // 连堂课优先，其次课时多者优先
	OrderHoursFirst SessionOrder = "hours_first" // 课时多者优先，其次连堂课优先
)

// Session 某班级/分组某门课程的排课需求
type Session struct {
	DivisionID     string         `json:"division_id"`
	Year           string         `json:"year"`
	Subject        *model.Subject `json:"subject"`
	Batch          model.Batch    `json:"batch"`
	HoursRemaining int            `json:"hours_remaining"`
	Contiguous     bool           `json:"contiguous"`
	BlockLength    int            `json:"block_length"`
	TeacherIDs     []string       `json:"teacher_ids"`
}

// Key 需求的稳定标识
func (s *Session) Key() string {
	return s.DivisionID + "/" + s.Subject.ID + "/" + string(s.Batch)
}

// Units 将需求拆分为待安排的单元（每个元素为节数）
func (s *Session) Units() []int {
	if !s.Contiguous {
		units := make([]int, s.HoursRemaining)
		for i := range units {
			units[i] = 1
		}
		return units
	}
	block := s.BlockLength
	if block < 1 {
		block = 1
	}
	var units []int
	for left := s.HoursRemaining; left > 0; left -= block {
		if left < block {
			units = append(units, left)
			break
		}
		units = append(units, block)
	}
	return units
}

// Model 一次生成运行使用的约束模型（配置快照）
type Model struct {
	WorkingDays []int
	Grid        *Grid
	Order       SessionOrder

	subjects    map[string]*model.Subject
	teachers    map[string]*model.Teacher
	divisionMap map[string]*model.Division
	rooms       []*model.Room
	divisions   []*model.Division
	offerings   []model.Offering
}

// NewModel 基于配置快照创建约束模型，配置会被深拷贝
func NewModel(cfg model.Config) *Model {
	snap := cfg.Clone()
	m := &Model{
		Grid:        NewGrid(snap.Slots),
		Order:       OrderLabsFirst,
		subjects:    make(map[string]*model.Subject),
		teachers:    make(map[string]*model.Teacher),
		divisionMap: make(map[string]*model.Division),
		offerings:   snap.Offerings,
	}
	for d := 1; d <= snap.WorkingDays; d++ {
		m.WorkingDays = append(m.WorkingDays, d)
	}
	for i := range snap.Subjects {
		m.subjects[snap.Subjects[i].ID] = &snap.Subjects[i]
	}
	for i := range snap.Teachers {
		m.teachers[snap.Teachers[i].ID] = &snap.Teachers[i]
	}
	for i := range snap.Rooms {
		m.rooms = append(m.rooms, &snap.Rooms[i])
	}
	sort.SliceStable(m.rooms, func(i, j int) bool {
		if m.rooms[i].Capacity != m.rooms[j].Capacity {
			return m.rooms[i].Capacity < m.rooms[j].Capacity
		}
		return m.rooms[i].ID < m.rooms[j].ID
	})
	for i := range snap.Divisions {
		d := &snap.Divisions[i]
		m.divisionMap[d.ID] = d
		m.divisions = append(m.divisions, d)
	}
	sort.SliceStable(m.divisions, func(i, j int) bool {
		if m.divisions[i].Year != m.divisions[j].Year {
			return m.divisions[i].Year < m.divisions[j].Year
		}
		return m.divisions[i].Name < m.divisions[j].Name
	})
	return m
}

// Subject 获取课程
func (m *Model) Subject(id string) *model.Subject {
	return m.subjects[id]
}

// Teacher 获取教师
func (m *Model) Teacher(id string) *model.Teacher {
	return m.teachers[id]
}

// Division 获取班级
func (m *Model) Division(id string) *model.Division {
	return m.divisionMap[id]
}

// Divisions 按 (年级, 班级名) 升序返回班级
func (m *Model) Divisions() []*model.Division {
	return m.divisions
}

// Rooms 按容量升序返回教室
func (m *Model) Rooms() []*model.Room {
	return m.rooms
}

// Room 获取教室
func (m *Model) Room(id string) *model.Room {
	for _, r := range m.rooms {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Offerings 返回开课任务
func (m *Model) Offerings() []model.Offering {
	return m.offerings
}

// IsWorkingDay 是否为工作日
func (m *Model) IsWorkingDay(day int) bool {
	return day >= 1 && day <= len(m.WorkingDays)
}

// RequiredSessions 返回班级的排课需求，按当前排序策略排列
func (m *Model) RequiredSessions(divisionID string) []Session {
	div := m.divisionMap[divisionID]
	if div == nil {
		return nil
	}

	var sessions []Session
	for _, o := range m.offerings {
		if o.DivisionID != divisionID {
			continue
		}
		subj := m.subjects[o.SubjectID]
		if subj == nil {
			continue
		}
		hours := o.Hours
		if hours == 0 {
			hours = subj.HoursPerWeek
		}
		if hours <= 0 {
			continue
		}
		sessions = append(sessions, Session{
			DivisionID:     div.ID,
			Year:           div.Year,
			Subject:        subj,
			Batch:          o.BatchOrAll(),
			HoursRemaining: hours,
			Contiguous:     subj.IsContiguous(),
			BlockLength:    subj.Block(),
			TeacherIDs:     append([]string(nil), o.TeacherIDs...),
		})
	}

	SortSessions(sessions, m.Order)
	return sessions
}

// SortSessions 按策略稳定排序排课需求
func SortSessions(sessions []Session, order SessionOrder) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if order == OrderHoursFirst {
			if a.HoursRemaining != b.HoursRemaining {
				return a.HoursRemaining > b.HoursRemaining
			}
			if a.Contiguous != b.Contiguous {
				return a.Contiguous
			}
		} else {
			if a.Contiguous != b.Contiguous {
				return a.Contiguous
			}
			if a.HoursRemaining != b.HoursRemaining {
				return a.HoursRemaining > b.HoursRemaining
			}
		}
		if a.Subject.ID != b.Subject.ID {
			return a.Subject.ID < b.Subject.ID
		}
		return a.Batch < b.Batch
	})
}

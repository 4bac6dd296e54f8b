package model

// TimeSlot 一周课表中的一个节次
type TimeSlot struct {
	Number int      `json:"number" validate:"min=1"`
	Label  string   `json:"label,omitempty"`
	Start  string   `json:"start,omitempty"` // HH:MM
	End    string   `json:"end,omitempty"`   // HH:MM
	Kind   SlotKind `json:"kind" validate:"oneof=period recess lunch"`
}

// IsTeaching 是否可以安排课程
func (s TimeSlot) IsTeaching() bool {
	return s.Kind == SlotPeriod
}

// Subject 课程
type Subject struct {
	ID           string      `json:"id" validate:"required"`
	Code         string      `json:"code,omitempty"`
	Name         string      `json:"name" validate:"required"`
	Kind         SubjectKind `json:"kind" validate:"oneof=TH PR VAP OE"`
	HoursPerWeek int         `json:"hours_per_week" validate:"min=0"`
	Contiguous   bool        `json:"contiguous"`
	BlockLength  int         `json:"block_length,omitempty" validate:"min=0"` // 连堂节数
}

// IsContiguous 是否需要连堂
func (s *Subject) IsContiguous() bool {
	return s.Contiguous || s.Kind == SubjectPractical
}

// Block 连堂课每次的节数
func (s *Subject) Block() int {
	if !s.IsContiguous() {
		return 1
	}
	if s.BlockLength > 0 {
		return s.BlockLength
	}
	return 2
}

// Teacher 教师
type Teacher struct {
	ID          string    `json:"id" validate:"required"`
	Name        string    `json:"name" validate:"required"`
	MaxLoad     int       `json:"max_load" validate:"min=0"` // 每周最多节数，0 表示不限
	Unavailable []SlotRef `json:"unavailable,omitempty" validate:"dive"`
}

// IsAvailable 教师在某天某节是否可用
func (t *Teacher) IsAvailable(day, slot int) bool {
	for _, u := range t.Unavailable {
		if u.Day == day && u.Slot == slot {
			return false
		}
	}
	return true
}

// Room 教室
type Room struct {
	ID       string   `json:"id" validate:"required"`
	Name     string   `json:"name,omitempty"`
	Type     RoomType `json:"type" validate:"oneof=CR LAB"`
	Capacity int      `json:"capacity" validate:"min=0"`
}

// Division 班级
type Division struct {
	ID       string  `json:"id" validate:"required"`
	Year     string  `json:"year" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Batches  []Batch `json:"batches,omitempty" validate:"dive,oneof=ALL A1 A2 A3"`
	Strength int     `json:"strength,omitempty" validate:"min=0"`
}

// HasSubBatches 班级是否划分了实验分组
func (d *Division) HasSubBatches() bool {
	for _, b := range d.Batches {
		if b.IsSubBatch() {
			return true
		}
	}
	return false
}

// GroupSize 某分组的学生人数，未知时返回 0
func (d *Division) GroupSize(batch Batch) int {
	if d.Strength == 0 || !batch.IsSubBatch() {
		return d.Strength
	}
	n := 0
	for _, b := range d.Batches {
		if b.IsSubBatch() {
			n++
		}
	}
	if n == 0 {
		return d.Strength
	}
	return (d.Strength + n - 1) / n
}

// Offering 班级/分组的开课任务
type Offering struct {
	DivisionID string   `json:"division_id" validate:"required"`
	SubjectID  string   `json:"subject_id" validate:"required"`
	Batch      Batch    `json:"batch,omitempty" validate:"omitempty,oneof=ALL A1 A2 A3"`
	TeacherIDs []string `json:"teacher_ids" validate:"required,min=1,dive,required"` // 候选教师，按优先顺序
	Hours      int      `json:"hours,omitempty" validate:"min=0"`                    // 0 表示使用课程默认课时
}

// BatchOrAll 返回开课分组，未指定时为 ALL
func (o *Offering) BatchOrAll() Batch {
	if o.Batch == "" {
		return BatchAll
	}
	return o.Batch
}

// Config 一次课表生成所需的配置快照
type Config struct {
	WorkingDays int        `json:"working_days" validate:"min=1,max=7"`
	Slots       []TimeSlot `json:"slots" validate:"required,min=1,dive"`
	Subjects    []Subject  `json:"subjects" validate:"required,dive"`
	Teachers    []Teacher  `json:"teachers" validate:"required,dive"`
	Rooms       []Room     `json:"rooms" validate:"required,dive"`
	Divisions   []Division `json:"divisions" validate:"required,dive"`
	Offerings   []Offering `json:"offerings" validate:"dive"`
}

// Clone 深拷贝配置，生成过程中不受外部修改影响
func (c *Config) Clone() Config {
	out := Config{
		WorkingDays: c.WorkingDays,
		Slots:       append([]TimeSlot(nil), c.Slots...),
		Subjects:    append([]Subject(nil), c.Subjects...),
		Rooms:       append([]Room(nil), c.Rooms...),
	}
	out.Teachers = make([]Teacher, len(c.Teachers))
	for i, t := range c.Teachers {
		t.Unavailable = append([]SlotRef(nil), t.Unavailable...)
		out.Teachers[i] = t
	}
	out.Divisions = make([]Division, len(c.Divisions))
	for i, d := range c.Divisions {
		d.Batches = append([]Batch(nil), d.Batches...)
		out.Divisions[i] = d
	}
	out.Offerings = make([]Offering, len(c.Offerings))
	for i, o := range c.Offerings {
		o.TeacherIDs = append([]string(nil), o.TeacherIDs...)
		out.Offerings[i] = o
	}
	return out
}

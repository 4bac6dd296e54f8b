package validator

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/restriction"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/solver"
)

func testModel() *constraint.Model {
	return constraint.NewModel(model.Config{
		WorkingDays: 5,
		Slots: []model.TimeSlot{
			{Number: 1, Kind: model.SlotPeriod},
			{Number: 2, Kind: model.SlotPeriod},
			{Number: 3, Kind: model.SlotRecess},
			{Number: 4, Kind: model.SlotPeriod},
			{Number: 5, Kind: model.SlotPeriod},
		},
		Subjects: []model.Subject{
			{ID: "math", Name: "数学", Kind: model.SubjectTheory, HoursPerWeek: 3},
			{ID: "lab", Name: "物理实验", Kind: model.SubjectPractical, HoursPerWeek: 2},
		},
		Teachers: []model.Teacher{
			{ID: "t1", Name: "王老师", MaxLoad: 2},
			{ID: "t2", Name: "李老师", Unavailable: []model.SlotRef{{Day: 3, Slot: 1}}},
		},
		Rooms: []model.Room{
			{ID: "cr1", Name: "101", Type: model.RoomClassroom},
			{ID: "cr2", Name: "102", Type: model.RoomClassroom},
			{ID: "lab1", Name: "实验室", Type: model.RoomLab},
		},
		Divisions: []model.Division{
			{ID: "fy-a", Year: "FY", Name: "A", Batches: []model.Batch{model.BatchA1, model.BatchA2}},
			{ID: "fy-b", Year: "FY", Name: "B"},
		},
	})
}

func entry(div, subject, teacher, room string, day, slot int) *model.TimetableEntry {
	return &model.TimetableEntry{
		ID:         uuid.New(),
		Year:       "FY",
		DivisionID: div,
		SubjectID:  subject,
		TeacherID:  teacher,
		RoomID:     room,
		Batch:      model.BatchAll,
		Day:        day,
		TimeSlot:   slot,
		Duration:   1,
	}
}

func labEntry(batch model.Batch, day, slot, duration int) *model.TimetableEntry {
	e := entry("fy-a", "lab", "t2", "lab1", day, slot)
	e.Batch = batch
	e.IsLabSession = true
	e.RoomType = model.RoomLab
	e.Duration = duration
	return e
}

func TestConflictDetector_NoConflicts(t *testing.T) {
	d := NewConflictDetector()
	conflicts := d.Detect(Input{
		Model: testModel(),
		Entries: []*model.TimetableEntry{
			entry("fy-a", "math", "t1", "cr1", 1, 1),
			entry("fy-b", "math", "t1", "cr1", 1, 2),
			labEntry(model.BatchA1, 2, 1, 2),
		},
	})
	assert.Empty(t, conflicts)
}

// 两个班级在唯一可用节次共用唯一教师
func TestConflictDetector_ScenarioC(t *testing.T) {
	d := NewConflictDetector()
	a := entry("fy-a", "math", "t1", "cr1", 1, 1)
	b := entry("fy-b", "math", "t1", "cr2", 1, 1)

	conflicts := d.Detect(Input{Model: testModel(), Entries: []*model.TimetableEntry{a, b}})

	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictTeacher, conflicts[0].Type)
	assert.Equal(t, []int{0, 1}, conflicts[0].Entries)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, conflicts[0].EntryIDs)
	assert.NotEmpty(t, conflicts[0].Suggestion)
}

func TestConflictDetector_RoomConflict(t *testing.T) {
	d := NewConflictDetector()
	conflicts := d.Detect(Input{
		Model: testModel(),
		Entries: []*model.TimetableEntry{
			entry("fy-a", "math", "t1", "cr1", 2, 4),
			entry("fy-b", "math", "t2", "cr1", 2, 4),
		},
	})

	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictRoom, conflicts[0].Type)
}

func TestConflictDetector_OverlapViaBlock(t *testing.T) {
	d := NewConflictDetector()
	// 第4-5节的连堂与第5节的单节课重叠
	lab := labEntry(model.BatchA1, 1, 4, 2)
	single := entry("fy-b", "math", "t2", "cr1", 1, 5)

	conflicts := d.Detect(Input{Model: testModel(), Entries: []*model.TimetableEntry{lab, single}})

	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictTeacher, conflicts[0].Type)
}

func TestConflictDetector_Workload(t *testing.T) {
	d := NewConflictDetector()
	entries := []*model.TimetableEntry{
		entry("fy-a", "math", "t1", "cr1", 1, 1),
		entry("fy-a", "math", "t1", "cr1", 2, 1),
		entry("fy-a", "math", "t1", "cr1", 3, 1),
	}

	conflicts := d.Detect(Input{Model: testModel(), Entries: entries})
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictWorkload, conflicts[0].Type)
	assert.Equal(t, []int{0, 1, 2}, conflicts[0].Entries)
	assert.Equal(t, "t1", conflicts[0].TeacherID)

	// 放宽周课时后不再报告
	entries[2].AddOverride(model.Override{Rule: model.RuleWorkload})
	assert.Empty(t, d.Detect(Input{Model: testModel(), Entries: entries}))
}

func TestConflictDetector_Scheduling(t *testing.T) {
	reg := restriction.NewRegistry()
	require.NoError(t, reg.Register(&model.Restriction{
		BaseModel: model.NewBaseModel(),
		Scope:     model.ScopeYear,
		Years:     []string{"FY"},
		Slots:     []int{2},
		Days:      []int{4},
		Reason:    "年级大会",
	}))

	tests := []struct {
		name     string
		entry    *model.TimetableEntry
		wantCode Code
	}{
		{"预约后落在封锁节次", entry("fy-a", "math", "t2", "cr1", 4, 2), CodeBlocked},
		{"教师不可用", entry("fy-a", "math", "t2", "cr1", 3, 1), CodeUnavailable},
		{"课间节次", entry("fy-a", "math", "t2", "cr1", 1, 3), CodeInvalidSlot},
		{"非工作日", entry("fy-a", "math", "t2", "cr1", 6, 1), CodeInvalidSlot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewConflictDetector()
			conflicts := d.Detect(Input{Model: testModel(), Blocker: reg, Entries: []*model.TimetableEntry{tt.entry}})
			require.Len(t, conflicts, 1)
			assert.Equal(t, ConflictScheduling, conflicts[0].Type)
			assert.Equal(t, tt.wantCode, conflicts[0].Code)
		})
	}
}

func TestConflictDetector_Lab(t *testing.T) {
	wrongRoom := labEntry(model.BatchA2, 1, 1, 2)
	wrongRoom.RoomID = "cr1"

	tests := []struct {
		name     string
		entry    *model.TimetableEntry
		wantCode Code
	}{
		{"已分组班级使用 ALL", labEntry(model.BatchAll, 1, 1, 2), CodeBatchAll},
		{"非实验室", wrongRoom, CodeWrongRoom},
		{"跨越课间", labEntry(model.BatchA1, 1, 2, 2), CodeBrokenBlock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewConflictDetector()
			conflicts := d.Detect(Input{Model: testModel(), Entries: []*model.TimetableEntry{tt.entry}})
			require.Len(t, conflicts, 1)
			assert.Equal(t, ConflictLabScheduling, conflicts[0].Type)
			assert.Equal(t, tt.wantCode, conflicts[0].Code)
		})
	}
}

func TestConflictDetector_ShortBlock(t *testing.T) {
	d := NewConflictDetector()
	first := labEntry(model.BatchA1, 1, 1, 1)
	second := labEntry(model.BatchA1, 2, 1, 1)
	entries := []*model.TimetableEntry{first, second}

	conflicts := d.Detect(Input{Model: testModel(), Entries: entries})
	require.Len(t, conflicts, 2)
	for _, c := range conflicts {
		assert.Equal(t, CodeShortBlock, c.Code)
	}

	// 放宽连堂后单节实验课是合法的
	for _, e := range entries {
		e.AddOverride(model.Override{Rule: model.RuleContiguity})
	}
	assert.Empty(t, d.Detect(Input{Model: testModel(), Entries: entries}))
}

func TestConflictDetector_Unplaced(t *testing.T) {
	d := NewConflictDetector()
	conflicts := d.Detect(Input{
		Model: testModel(),
		Unplaced: []solver.Unplaced{
			{DivisionID: "fy-a", SubjectID: "lab", Batch: model.BatchA1, Length: 2, Contiguous: true, Reason: "无连续节次"},
			{DivisionID: "fy-b", SubjectID: "math", Batch: model.BatchAll, Length: 1, Reason: "教师已满"},
		},
	})

	require.Len(t, conflicts, 2)
	assert.Equal(t, ConflictScheduling, conflicts[0].Type)
	assert.Equal(t, CodeUnplaced, conflicts[0].Code)
	assert.Contains(t, conflicts[0].Description, "fy-b/math/ALL#0")
	assert.Contains(t, conflicts[0].Description, "教师已满")
	assert.Equal(t, ConflictLabScheduling, conflicts[1].Type)
	assert.Empty(t, conflicts[1].Entries)
	require.NotNil(t, conflicts[1].Session)
	assert.Equal(t, "fy-a/lab/A1#0", conflicts[1].Session.Key())
}

func TestConflictDetector_Idempotent(t *testing.T) {
	d := NewConflictDetector()
	in := Input{
		Model: testModel(),
		Entries: []*model.TimetableEntry{
			entry("fy-a", "math", "t1", "cr1", 1, 1),
			entry("fy-b", "math", "t1", "cr1", 1, 1),
			entry("fy-a", "math", "t1", "cr2", 1, 1),
			labEntry(model.BatchAll, 2, 2, 2),
		},
		Unplaced: []solver.Unplaced{{DivisionID: "fy-b", SubjectID: "math", Batch: model.BatchAll, Length: 1}},
	}

	first := d.Detect(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, d.Detect(in))
	}

	// 类型顺序
	last := -1
	for _, c := range first {
		assert.GreaterOrEqual(t, c.Type.rank(), last)
		last = c.Type.rank()
		assert.NotEmpty(t, c.Fingerprint)
	}
}

type countingVisitor struct {
	seen map[ConflictType]int
}

func (v *countingVisitor) VisitTeacherConflict(c *Conflict) error {
	v.seen[c.Type]++
	return nil
}
func (v *countingVisitor) VisitRoomConflict(c *Conflict) error {
	v.seen[c.Type]++
	return nil
}
func (v *countingVisitor) VisitWorkloadExceeded(c *Conflict) error {
	v.seen[c.Type]++
	return nil
}
func (v *countingVisitor) VisitSchedulingConflict(c *Conflict) error {
	v.seen[c.Type]++
	return nil
}
func (v *countingVisitor) VisitLabSchedulingConflict(c *Conflict) error {
	v.seen[c.Type]++
	return nil
}

func TestConflict_Accept(t *testing.T) {
	v := &countingVisitor{seen: make(map[ConflictType]int)}
	for _, typ := range ConflictTypes() {
		c := &Conflict{Type: typ}
		require.NoError(t, c.Accept(v))
	}
	assert.Len(t, v.seen, 5)

	bad := &Conflict{Type: "bogus"}
	assert.Error(t, bad.Accept(v))
	assert.False(t, ConflictType("bogus").Valid())
}

func TestCountByType(t *testing.T) {
	conflicts := []Conflict{{Type: ConflictTeacher}, {Type: ConflictTeacher}, {Type: ConflictRoom}}
	counts := CountByType(conflicts)
	assert.Equal(t, 2, counts[string(ConflictTeacher)])
	assert.Equal(t, 1, counts[string(ConflictRoom)])
	assert.Equal(t, "map[room_conflict:1 teacher_conflict:2]", fmt.Sprint(counts))
}

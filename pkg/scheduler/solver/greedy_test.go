package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/restriction"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint/builtin"
)

func sixPeriods() []model.TimeSlot {
	slots := make([]model.TimeSlot, 0, 6)
	for i := 1; i <= 6; i++ {
		slots = append(slots, model.TimeSlot{Number: i, Kind: model.SlotPeriod})
	}
	return slots
}

// baseConfig 1 个班级、1 门 3 课时理论课、1 位教师、1 间教室、5 天 × 6 节
func baseConfig() model.Config {
	return model.Config{
		WorkingDays: 5,
		Slots:       sixPeriods(),
		Subjects:    []model.Subject{{ID: "math", Name: "数学", Kind: model.SubjectTheory, HoursPerWeek: 3}},
		Teachers:    []model.Teacher{{ID: "t1", Name: "王老师"}},
		Rooms:       []model.Room{{ID: "cr1", Name: "101", Type: model.RoomClassroom, Capacity: 60}},
		Divisions:   []model.Division{{ID: "fy-a", Year: "FY", Name: "A", Strength: 60}},
		Offerings:   []model.Offering{{DivisionID: "fy-a", SubjectID: "math", TeacherIDs: []string{"t1"}}},
	}
}

func solve(t *testing.T, cfg model.Config, reg *restriction.Registry) *Result {
	t.Helper()
	var blocker restriction.Blocker
	if reg != nil {
		blocker = reg
	}
	schedCtx := constraint.NewContext(constraint.NewModel(cfg), blocker)
	s := NewGreedySolver(builtin.NewDefaultManager())
	result, err := s.Solve(context.Background(), schedCtx)
	require.NoError(t, err)
	return result
}

func TestGreedySolver_ScenarioA(t *testing.T) {
	result := solve(t, baseConfig(), nil)

	assert.Len(t, result.Entries, 3)
	assert.Empty(t, result.Unplaced)
	assert.True(t, result.Success)
	assert.Equal(t, 100.0, result.Statistics.FillRate)
	for _, e := range result.Entries {
		assert.Equal(t, "t1", e.TeacherID)
		assert.Equal(t, "cr1", e.RoomID)
		assert.Equal(t, model.BatchAll, e.Batch)
		assert.False(t, e.IsLabSession)
	}
}

func TestGreedySolver_ScenarioB(t *testing.T) {
	reg := restriction.NewRegistry()
	require.NoError(t, reg.Register(&model.Restriction{
		BaseModel: model.NewBaseModel(),
		Scope:     model.ScopeGlobal,
		Slots:     []int{1},
		Days:      []int{model.DayAll},
		Priority:  1,
	}))

	cfg := baseConfig()
	cfg.Subjects[0].HoursPerWeek = 12
	result := solve(t, cfg, reg)

	assert.Len(t, result.Entries, 12)
	for _, e := range result.Entries {
		assert.NotEqual(t, 1, e.TimeSlot, "第1节被全局预约封锁")
	}
}

func TestGreedySolver_ScenarioD(t *testing.T) {
	cfg := baseConfig()
	// 上课节次之间都隔着课间，不存在两节连堂
	cfg.Slots = []model.TimeSlot{
		{Number: 1, Kind: model.SlotPeriod},
		{Number: 2, Kind: model.SlotRecess},
		{Number: 3, Kind: model.SlotPeriod},
		{Number: 4, Kind: model.SlotLunch},
		{Number: 5, Kind: model.SlotPeriod},
	}
	cfg.Subjects = []model.Subject{{ID: "phy-lab", Name: "物理实验", Kind: model.SubjectPractical, HoursPerWeek: 2}}
	cfg.Rooms = []model.Room{{ID: "lab1", Name: "实验室", Type: model.RoomLab}}
	cfg.Offerings = []model.Offering{{DivisionID: "fy-a", SubjectID: "phy-lab", TeacherIDs: []string{"t1"}}}

	result := solve(t, cfg, nil)

	assert.Empty(t, result.Entries)
	require.Len(t, result.Unplaced, 1)
	assert.True(t, result.Unplaced[0].Contiguous)
	assert.Equal(t, 2, result.Unplaced[0].Length)
	assert.False(t, result.Success)
}

func TestGreedySolver_SharedTeacherAcrossDivisions(t *testing.T) {
	cfg := baseConfig()
	cfg.WorkingDays = 1
	cfg.Slots = sixPeriods()[:1]
	cfg.Subjects[0].HoursPerWeek = 1
	cfg.Rooms = append(cfg.Rooms, model.Room{ID: "cr2", Name: "102", Type: model.RoomClassroom, Capacity: 60})
	cfg.Divisions = append(cfg.Divisions, model.Division{ID: "fy-b", Year: "FY", Name: "B"})
	cfg.Offerings = append(cfg.Offerings, model.Offering{DivisionID: "fy-b", SubjectID: "math", TeacherIDs: []string{"t1"}})

	result := solve(t, cfg, nil)

	require.Len(t, result.Entries, 1)
	assert.Equal(t, "fy-a", result.Entries[0].DivisionID)
	require.Len(t, result.Unplaced, 1)
	assert.Equal(t, "fy-b", result.Unplaced[0].DivisionID)
	assert.Contains(t, result.Unplaced[0].Reason, "教师")

	err := result.Unplaced[0].Err()
	assert.True(t, errors.Is(err, errors.CodeUnplaceable))
	assert.Contains(t, err.Message, result.Unplaced[0].Key())
}

func TestGreedySolver_ContiguousBlocks(t *testing.T) {
	cfg := baseConfig()
	cfg.Subjects = append(cfg.Subjects, model.Subject{ID: "chem-lab", Name: "化学实验", Kind: model.SubjectPractical, HoursPerWeek: 4})
	cfg.Rooms = append(cfg.Rooms, model.Room{ID: "lab1", Name: "实验室", Type: model.RoomLab, Capacity: 30})
	cfg.Divisions[0].Batches = []model.Batch{model.BatchA1, model.BatchA2}
	cfg.Teachers = append(cfg.Teachers, model.Teacher{ID: "t2", Name: "李老师"})
	cfg.Offerings = append(cfg.Offerings, model.Offering{DivisionID: "fy-a", SubjectID: "chem-lab", Batch: model.BatchA1, TeacherIDs: []string{"t2"}})

	result := solve(t, cfg, nil)

	require.True(t, result.Success)
	labs := 0
	for _, e := range result.Entries {
		if e.IsLabSession {
			labs++
			assert.Equal(t, 2, e.Duration)
			assert.Equal(t, "lab1", e.RoomID)
			assert.Equal(t, model.BatchA1, e.Batch)
		}
	}
	assert.Equal(t, 2, labs)
	// 实验课优先安排，理论课不会与 A1 的实验课同时进行
	assert.Equal(t, 1, result.Entries[0].TimeSlot)
	assert.True(t, result.Entries[0].IsLabSession)
}

func TestGreedySolver_WorkloadCap(t *testing.T) {
	cfg := baseConfig()
	cfg.Teachers[0].MaxLoad = 2

	result := solve(t, cfg, nil)

	assert.Len(t, result.Entries, 2)
	require.Len(t, result.Unplaced, 1)
	assert.Contains(t, result.Unplaced[0].Reason, "上限")
}

func TestGreedySolver_Deterministic(t *testing.T) {
	first := solve(t, baseConfig(), nil)
	second := solve(t, baseConfig(), nil)

	require.Len(t, second.Entries, len(first.Entries))
	for i := range first.Entries {
		a, b := first.Entries[i], second.Entries[i]
		assert.Equal(t, [3]int{a.Day, a.TimeSlot, a.Duration}, [3]int{b.Day, b.TimeSlot, b.Duration})
	}
}

func TestGreedySolver_Cancelled(t *testing.T) {
	schedCtx := constraint.NewContext(constraint.NewModel(baseConfig()), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGreedySolver(builtin.NewDefaultManager()).Solve(ctx, schedCtx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlacer_Exclude(t *testing.T) {
	schedCtx := constraint.NewContext(constraint.NewModel(baseConfig()), nil)
	p := NewPlacer(builtin.NewDefaultManager())

	entry, _ := p.Place(schedCtx, Request{
		DivisionID: "fy-a", Year: "FY", SubjectID: "math", Batch: model.BatchAll, Length: 1, TeacherIDs: []string{"t1"},
	}, PlaceOptions{Exclude: func(day, slot int) bool { return day == 1 && slot <= 2 }})

	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.Day)
	assert.Equal(t, 3, entry.TimeSlot)
}

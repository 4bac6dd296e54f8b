package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/resolution"
	"github.com/kebiao/kebiao/pkg/validator"
)

// testConfig 两个班级，每班 1 门 2 课时理论课，5 天 × 4 节
func testConfig() *model.Config {
	slots := make([]model.TimeSlot, 0, 4)
	for i := 1; i <= 4; i++ {
		slots = append(slots, model.TimeSlot{Number: i, Kind: model.SlotPeriod})
	}
	return &model.Config{
		WorkingDays: 5,
		Slots:       slots,
		Subjects:    []model.Subject{{ID: "math", Name: "数学", Kind: model.SubjectTheory, HoursPerWeek: 2}},
		Teachers: []model.Teacher{
			{ID: "t1", Name: "王老师"},
			{ID: "t2", Name: "李老师"},
		},
		Rooms: []model.Room{
			{ID: "cr1", Name: "101", Type: model.RoomClassroom},
			{ID: "cr2", Name: "102", Type: model.RoomClassroom},
		},
		Divisions: []model.Division{
			{ID: "fy-a", Year: "FY", Name: "A"},
			{ID: "fy-b", Year: "FY", Name: "B"},
		},
		Offerings: []model.Offering{
			{DivisionID: "fy-a", SubjectID: "math", TeacherIDs: []string{"t1"}},
			{DivisionID: "fy-b", SubjectID: "math", TeacherIDs: []string{"t2"}},
		},
	}
}

type fakeRecorder struct {
	generations []string
	resolutions []string
	active      map[string]int
}

func (r *fakeRecorder) ObserveGeneration(outcome string, _ time.Duration, _, _ int) {
	r.generations = append(r.generations, outcome)
}

func (r *fakeRecorder) SetActiveConflicts(byType map[string]int) { r.active = byType }

func (r *fakeRecorder) ObserveResolution(action, outcome string) {
	r.resolutions = append(r.resolutions, action+":"+outcome)
}

func newTestScheduler() (*Scheduler, *MemoryStore, *MemoryLocker) {
	store := NewMemoryStore()
	locker := NewMemoryLocker()
	return New(nil, store, locker, DefaultOptions()), store, locker
}

func TestScheduler_Generate(t *testing.T) {
	s, store, _ := newTestScheduler()
	rec := &fakeRecorder{}
	s.SetRecorder(rec)

	result, err := s.Generate(context.Background(), GenerateRequest{Config: testConfig()})
	require.NoError(t, err)

	assert.Len(t, result.Timetables, 2)
	assert.Empty(t, result.Unplaced)
	assert.Zero(t, result.ActiveConflicts)
	assert.Equal(t, 4, result.Statistics.PlacedSlots)
	assert.Equal(t, []string{"success"}, rec.generations)

	active, err := store.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, tt := range active {
		assert.True(t, tt.IsActive)
		assert.Equal(t, 1, tt.Version)
		assert.Equal(t, result.RunID, tt.RunID)
		for _, e := range tt.Entries {
			assert.Equal(t, tt.ID, e.TimetableID)
		}
	}
}

func TestScheduler_InvalidConfiguration(t *testing.T) {
	s, store, _ := newTestScheduler()

	cfg := testConfig()
	cfg.Offerings[1].TeacherIDs = []string{"ghost"}
	_, err := s.Generate(context.Background(), GenerateRequest{Config: cfg})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeInvalidConfiguration))
	active, _ := store.ListActive(context.Background())
	assert.Empty(t, active, "配置错误时不应保存任何课表")
}

func TestScheduler_NoConfig(t *testing.T) {
	s, _, _ := newTestScheduler()

	_, err := s.Generate(context.Background(), GenerateRequest{})
	assert.True(t, errors.Is(err, errors.CodeInvalidConfiguration))

	_, err = s.Conflicts(context.Background())
	assert.True(t, errors.Is(err, errors.CodeInvalidConfiguration))
}

func TestScheduler_UnknownDivision(t *testing.T) {
	s, _, _ := newTestScheduler()

	_, err := s.Generate(context.Background(), GenerateRequest{Config: testConfig(), DivisionIDs: []string{"sy-z"}})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestScheduler_RegenerateActivatesNewVersion(t *testing.T) {
	s, store, _ := newTestScheduler()
	ctx := context.Background()

	first, err := s.Generate(ctx, GenerateRequest{Config: testConfig()})
	require.NoError(t, err)
	second, err := s.Generate(ctx, GenerateRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)

	versions := store.Versions(model.Scope{Year: "FY", DivisionID: "fy-a", Batch: model.BatchAll})
	require.Len(t, versions, 2)
	assert.False(t, versions[0].IsActive)
	assert.Equal(t, 1, versions[0].Version)
	assert.True(t, versions[1].IsActive)
	assert.Equal(t, 2, versions[1].Version)

	active, _ := store.ListActive(ctx)
	assert.Len(t, active, 2, "每个范围只有一个生效版本")
}

func TestScheduler_GenerationInProgress(t *testing.T) {
	s, _, locker := newTestScheduler()
	ctx := context.Background()

	release, err := locker.TryLock(ctx, "timetable:FY/fy-a/ALL", time.Minute)
	require.NoError(t, err)

	_, err = s.Generate(ctx, GenerateRequest{Config: testConfig()})
	assert.True(t, errors.Is(err, errors.CodeGenerationInProgress))

	// 其它班级不受影响
	_, err = s.Generate(ctx, GenerateRequest{Config: testConfig(), DivisionIDs: []string{"fy-b"}})
	assert.NoError(t, err)

	release()
	_, err = s.Generate(ctx, GenerateRequest{Config: testConfig()})
	assert.NoError(t, err)
}

func TestScheduler_SeedsOtherDivisions(t *testing.T) {
	s, store, _ := newTestScheduler()
	ctx := context.Background()

	cfg := testConfig()
	cfg.Offerings[1].TeacherIDs = []string{"t1"}

	_, err := s.Generate(ctx, GenerateRequest{Config: cfg, DivisionIDs: []string{"fy-a"}})
	require.NoError(t, err)
	_, err = s.Generate(ctx, GenerateRequest{DivisionIDs: []string{"fy-b"}})
	require.NoError(t, err)

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	busy := make(map[[2]int]string)
	for _, tt := range active {
		for _, e := range tt.Entries {
			k := [2]int{e.Day, e.TimeSlot}
			if prev, ok := busy[k]; ok {
				t.Fatalf("教师 t1 在 (%d, %d) 同时给 %s 和 %s 上课", e.Day, e.TimeSlot, prev, e.DivisionID)
			}
			busy[k] = e.DivisionID
		}
	}
	assert.Len(t, busy, 4)

	report, err := s.Conflicts(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Active)
}

func TestScheduler_CancelledSavesNothing(t *testing.T) {
	s, store, locker := newTestScheduler()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Generate(ctx, GenerateRequest{Config: testConfig()})
	require.Error(t, err)

	active, _ := store.ListActive(context.Background())
	assert.Empty(t, active)

	// 锁已释放
	release, err := locker.TryLock(context.Background(), "timetable:FY/fy-a/ALL", time.Minute)
	require.NoError(t, err)
	release()
}

func TestScheduler_ResolvePersists(t *testing.T) {
	s, store, _ := newTestScheduler()
	rec := &fakeRecorder{}
	s.SetRecorder(rec)
	ctx := context.Background()

	cfg := testConfig()
	cfg.Subjects[0].HoursPerWeek = 1
	_, err := s.Generate(ctx, GenerateRequest{Config: cfg})
	require.NoError(t, err)

	// 手工把 B 班的课挪进 A 班的教室
	tables, err := s.Timetables(ctx, "", "fy-b")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	a, err := s.Timetables(ctx, "FY", "fy-a")
	require.NoError(t, err)
	target := a[0].Entries[0]
	moved := tables[0].Entries[0]
	moved.Day, moved.TimeSlot, moved.RoomID = target.Day, target.TimeSlot, target.RoomID
	require.NoError(t, store.ReplaceEntries(ctx, tables[0].ID, []model.TimetableEntry{moved}))

	report, err := s.Detect(ctx)
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, validator.ConflictRoom, report.Conflicts[0].Type)
	assert.Equal(t, 1, rec.active[string(validator.ConflictRoom)])

	outcomes, report, err := s.Resolve(ctx, map[int]resolution.Action{0: resolution.ActionAutoResolve})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success, outcomes[0].Error)
	assert.Zero(t, report.Active)
	assert.Equal(t, []string{"auto_resolve:success"}, rec.resolutions)

	tables, err = s.Timetables(ctx, "", "fy-b")
	require.NoError(t, err)
	got := tables[0].Entries[0]
	assert.NotEqual(t, target.RoomID, got.RoomID)
	assert.Equal(t, target.Day, got.Day)
	assert.Equal(t, target.TimeSlot, got.TimeSlot)
}

func TestScheduler_IgnoreResurfacesOnDetect(t *testing.T) {
	s, store, _ := newTestScheduler()
	ctx := context.Background()

	cfg := testConfig()
	cfg.Subjects[0].HoursPerWeek = 1
	_, err := s.Generate(ctx, GenerateRequest{Config: cfg})
	require.NoError(t, err)

	tables, _ := s.Timetables(ctx, "", "fy-b")
	a, _ := s.Timetables(ctx, "", "fy-a")
	moved := tables[0].Entries[0]
	moved.Day, moved.TimeSlot, moved.RoomID = a[0].Entries[0].Day, a[0].Entries[0].TimeSlot, a[0].Entries[0].RoomID
	require.NoError(t, store.ReplaceEntries(ctx, tables[0].ID, []model.TimetableEntry{moved}))

	_, err = s.Detect(ctx)
	require.NoError(t, err)
	_, report, err := s.Resolve(ctx, map[int]resolution.Action{0: resolution.ActionIgnore})
	require.NoError(t, err)
	assert.Zero(t, report.Active)
	assert.Equal(t, resolution.StateIgnored, report.Conflicts[0].State)

	report, err = s.Conflicts(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Active, "未重新检测前保持忽略")

	report, err = s.Detect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Active)
}

func TestScheduler_RegisterRestriction(t *testing.T) {
	s, _, _ := newTestScheduler()
	ctx := context.Background()

	r := &model.Restriction{
		BaseModel: model.NewBaseModel(),
		Scope:     model.ScopeGlobal,
		Slots:     []int{1},
		Days:      []int{model.DayAll},
		Priority:  1,
	}
	require.NoError(t, s.RegisterRestriction(ctx, r))
	assert.Equal(t, r, s.CheckSlot(1, 3, "FY"))
	assert.Nil(t, s.CheckSlot(2, 3, "FY"))

	result, err := s.Generate(ctx, GenerateRequest{Config: testConfig()})
	require.NoError(t, err)
	for _, tt := range result.Timetables {
		for _, e := range tt.Entries {
			assert.NotEqual(t, 1, e.TimeSlot)
		}
	}
}

type failingRestrictionStore struct{}

func (failingRestrictionStore) Create(context.Context, *model.Restriction) error {
	return errors.New(errors.CodeDatabaseError, "写入失败")
}

func TestScheduler_RegisterRestrictionRollback(t *testing.T) {
	s, _, _ := newTestScheduler()
	s.SetRestrictionStore(failingRestrictionStore{})

	r := &model.Restriction{
		BaseModel: model.NewBaseModel(),
		Scope:     model.ScopeGlobal,
		Slots:     []int{1},
		Days:      []int{model.DayAll},
		Priority:  1,
	}
	err := s.RegisterRestriction(context.Background(), r)
	assert.True(t, errors.Is(err, errors.CodeDatabaseError))
	assert.Nil(t, s.CheckSlot(1, 1, "FY"))
	assert.Zero(t, s.Registry().Count())
}

func TestScheduler_Stats(t *testing.T) {
	s, _, _ := newTestScheduler()
	ctx := context.Background()

	_, err := s.Stats(ctx)
	assert.True(t, errors.Is(err, errors.CodeInvalidConfiguration))

	_, err = s.Generate(ctx, GenerateRequest{Config: testConfig()})
	require.NoError(t, err)

	report, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.NotNil(t, report.Workload)
	assert.Len(t, report.Rooms, 2)
}

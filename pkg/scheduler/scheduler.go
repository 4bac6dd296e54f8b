// Package scheduler 编排课表生成、冲突检测与冲突解决
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/resolution"
	"github.com/kebiao/kebiao/pkg/restriction"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint/builtin"
	"github.com/kebiao/kebiao/pkg/scheduler/solver"
	"github.com/kebiao/kebiao/pkg/stats"
	"github.com/kebiao/kebiao/pkg/validator"
)

// Options 调度选项
type Options struct {
	Order   constraint.SessionOrder // 课时排序策略
	Timeout time.Duration           // 单次生成超时，0 表示不限
	LockTTL time.Duration           // 范围锁过期时间
}

// DefaultOptions 默认选项
func DefaultOptions() Options {
	return Options{
		Order:   constraint.OrderLabsFirst,
		Timeout: 60 * time.Second,
		LockTTL: 5 * time.Minute,
	}
}

// Recorder 指标记录
type Recorder interface {
	ObserveGeneration(outcome string, duration time.Duration, placed, unplaced int)
	SetActiveConflicts(byType map[string]int)
	ObserveResolution(action, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveGeneration(string, time.Duration, int, int) {}
func (nopRecorder) SetActiveConflicts(map[string]int) {}
func (nopRecorder) ObserveResolution(string, string) {}

// RestrictionStore 限制持久化
type RestrictionStore interface {
	Create(ctx context.Context, r *model.Restriction) error
}

// GenerateRequest 生成请求
type GenerateRequest struct {
	Config      *model.Config           `json:"config,omitempty"`       // 为空时使用上一次的配置
	DivisionIDs []string                `json:"division_ids,omitempty"` // 为空时生成全部班级
	Order       constraint.SessionOrder `json:"order,omitempty" validate:"omitempty,oneof=labs_first hours_first"`
}

// GenerateResult 生成结果
type GenerateResult struct {
	RunID           uuid.UUID          `json:"run_id"`
	Timetables      []*model.Timetable `json:"timetables"`
	Unplaced        []solver.Unplaced  `json:"unplaced"`
	Conflicts       []resolution.Item  `json:"conflicts"`
	ActiveConflicts int                `json:"active_conflicts"`
	Statistics      *solver.Statistics `json:"statistics"`
	Duration        time.Duration      `json:"duration"`
}

// ConflictReport 冲突列表
type ConflictReport struct {
	Conflicts []resolution.Item `json:"conflicts"`
	Active    int               `json:"active"`
	ByType    map[string]int    `json:"by_type"`
}

// StatsReport 统计报告
type StatsReport struct {
	Workload *stats.WorkloadMetrics `json:"workload"`
	Rooms    []stats.RoomStat       `json:"rooms"`
}

// Scheduler 排课服务
type Scheduler struct {
	solver           *solver.GreedySolver
	detector         *validator.ConflictDetector
	resolver         *resolution.Engine
	registry         *restriction.Registry
	store            Store
	locker           ScopeLocker
	restrictionStore RestrictionStore
	recorder         Recorder
	logger           *logger.SchedulerLogger
	opts             Options

	// pass 保护全局占用：生成和解决都会写入条目，同一时刻只允许一个
	pass sync.Mutex

	mu       sync.Mutex
	cfg      *model.Config
	unplaced map[string][]solver.Unplaced // 按班级
	ws       *resolution.Workspace
	tables   map[string]uuid.UUID // 工作区中各范围对应的生效课表
}

// New 创建排课服务
func New(registry *restriction.Registry, store Store, locker ScopeLocker, opts Options) *Scheduler {
	if registry == nil {
		registry = restriction.NewRegistry()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if opts.Order == "" {
		opts.Order = constraint.OrderLabsFirst
	}
	manager := builtin.NewDefaultManager()
	detector := validator.NewConflictDetector()
	return &Scheduler{
		solver:   solver.NewGreedySolver(manager),
		detector: detector,
		resolver: resolution.NewEngine(manager, detector),
		registry: registry,
		store:    store,
		locker:   locker,
		recorder: nopRecorder{},
		logger:   logger.NewSchedulerLogger(),
		opts:     opts,
		unplaced: make(map[string][]solver.Unplaced),
	}
}

// SetRecorder 设置指标记录
func (s *Scheduler) SetRecorder(r Recorder) {
	if r != nil {
		s.recorder = r
	}
}

// SetRestrictionStore 设置限制持久化
func (s *Scheduler) SetRestrictionStore(rs RestrictionStore) {
	s.restrictionStore = rs
}

// Registry 返回限制注册表
func (s *Scheduler) Registry() *restriction.Registry {
	return s.registry
}

// Config 返回当前配置副本
func (s *Scheduler) Config() (model.Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return model.Config{}, false
	}
	return s.cfg.Clone(), true
}

// Generate 生成课表
// 配置不完整时整体中止；取消或超时不会写入任何课表
func (s *Scheduler) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	start := time.Now()
	runID := uuid.New()

	cfg, err := s.snapshotConfig(req.Config)
	if err != nil {
		s.recorder.ObserveGeneration("invalid", time.Since(start), 0, 0)
		return nil, err
	}

	m := constraint.NewModel(cfg)
	m.Order = s.opts.Order
	if req.Order != "" {
		m.Order = req.Order
	}

	targets, err := targetDivisions(m, req.DivisionIDs)
	if err != nil {
		return nil, err
	}

	active, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "读取生效课表失败")
	}
	scopes := generationScopes(m, targets, active)

	keys := make([]string, len(scopes))
	for i, sc := range scopes {
		keys[i] = "timetable:" + sc.Key()
	}
	release, err := lockAll(ctx, s.locker, keys, s.opts.LockTTL)
	if err != nil {
		s.recorder.ObserveGeneration("rejected", time.Since(start), 0, 0)
		return nil, err
	}
	defer release()

	s.pass.Lock()
	defer s.pass.Unlock()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	// 锁内重新读取，其它班级的课表可能刚被激活
	active, err = s.store.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "读取生效课表失败")
	}

	isTarget := make(map[string]bool, len(targets))
	for _, id := range targets {
		isTarget[id] = true
	}
	schedCtx := constraint.NewContext(m, s.registry.Snapshot())
	schedCtx.Targets = targets
	seed := make([]*model.TimetableEntry, 0)
	for _, t := range active {
		if isTarget[t.DivisionID] {
			continue
		}
		for i := range t.Entries {
			seed = append(seed, &t.Entries[i])
		}
	}
	schedCtx.SetEntries(seed)

	sessions := 0
	for _, id := range targets {
		sessions += len(m.RequiredSessions(id))
	}
	s.logger.StartGeneration(runID.String(), len(targets), sessions)

	result, err := s.solver.Solve(ctx, schedCtx)
	if err != nil {
		s.recorder.ObserveGeneration("aborted", time.Since(start), 0, 0)
		return nil, errors.Wrap(err, errors.CodeTimeout, "课表生成已中止")
	}

	tables := buildTimetables(runID, scopes, result.Entries)
	if err := ctx.Err(); err != nil {
		s.recorder.ObserveGeneration("aborted", time.Since(start), 0, 0)
		return nil, errors.Wrap(err, errors.CodeTimeout, "课表生成已中止")
	}
	if err := s.store.SaveGeneration(ctx, tables); err != nil {
		s.recorder.ObserveGeneration("failed", time.Since(start), 0, 0)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "保存课表失败")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = &cfg
	for _, id := range targets {
		delete(s.unplaced, id)
	}
	for _, u := range result.Unplaced {
		s.unplaced[u.DivisionID] = append(s.unplaced[u.DivisionID], u)
	}
	if err := s.reloadLocked(ctx); err != nil {
		return nil, err
	}
	s.resolver.Detect(s.ws)
	s.publishConflictsLocked()

	duration := time.Since(start)
	outcome := "success"
	if !result.Success {
		outcome = "partial"
	}
	s.recorder.ObserveGeneration(outcome, duration, len(result.Entries), len(result.Unplaced))
	s.logger.GenerationComplete(runID.String(), duration, len(result.Entries), len(result.Unplaced))

	return &GenerateResult{
		RunID:           runID,
		Timetables:      tables,
		Unplaced:        result.Unplaced,
		Conflicts:       s.ws.Items(),
		ActiveConflicts: s.ws.ActiveCount(),
		Statistics:      result.Statistics,
		Duration:        duration,
	}, nil
}

// snapshotConfig 校验并复制配置
func (s *Scheduler) snapshotConfig(cfg *model.Config) (model.Config, error) {
	if cfg == nil {
		s.mu.Lock()
		cfg = s.cfg
		s.mu.Unlock()
	}
	if err := ValidateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg.Clone(), nil
}

// targetDivisions 本次生成的班级，按模型顺序
func targetDivisions(m *constraint.Model, ids []string) ([]string, error) {
	if len(ids) == 0 {
		out := make([]string, 0, len(m.Divisions()))
		for _, d := range m.Divisions() {
			out = append(out, d.ID)
		}
		return out, nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if m.Division(id) == nil {
			return nil, errors.NotFound("division", id)
		}
		out = append(out, id)
	}
	return out, nil
}

// generationScopes 目标班级涉及的全部课表范围：开课分组、ALL 以及现有生效范围
func generationScopes(m *constraint.Model, targets []string, active []*model.Timetable) []model.Scope {
	seen := make(map[string]model.Scope)
	add := func(sc model.Scope) { seen[sc.Key()] = sc }

	for _, id := range targets {
		div := m.Division(id)
		add(model.Scope{Year: div.Year, DivisionID: div.ID, Batch: model.BatchAll})
		for _, o := range m.Offerings() {
			if o.DivisionID == id {
				add(model.Scope{Year: div.Year, DivisionID: div.ID, Batch: o.BatchOrAll()})
			}
		}
		for _, t := range active {
			if t.DivisionID == id {
				add(t.Scope)
			}
		}
	}

	out := make([]model.Scope, 0, len(seen))
	for _, sc := range seen {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// buildTimetables 按范围组装新版本课表
func buildTimetables(runID uuid.UUID, scopes []model.Scope, entries []*model.TimetableEntry) []*model.Timetable {
	now := time.Now()
	byScope := make(map[string]*model.Timetable, len(scopes))
	tables := make([]*model.Timetable, 0, len(scopes))
	for _, sc := range scopes {
		t := &model.Timetable{
			BaseModel:   model.NewBaseModel(),
			Scope:       sc,
			RunID:       runID,
			GeneratedAt: now,
			Entries:     make([]model.TimetableEntry, 0),
		}
		byScope[sc.Key()] = t
		tables = append(tables, t)
	}
	for _, e := range entries {
		t := byScope[e.Scope().Key()]
		if t == nil {
			continue
		}
		e.TimetableID = t.ID
		t.Entries = append(t.Entries, *e)
	}
	return tables
}

// reloadLocked 从存储重建工作区，调用方持有 s.mu
func (s *Scheduler) reloadLocked(ctx context.Context) error {
	if s.cfg == nil {
		return errors.New(errors.CodeInvalidConfiguration, "尚未提供课表配置")
	}
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "读取生效课表失败")
	}

	entries := make([]*model.TimetableEntry, 0)
	s.tables = make(map[string]uuid.UUID, len(active))
	for _, t := range active {
		s.tables[t.Scope.Key()] = t.ID
		for i := range t.Entries {
			entries = append(entries, &t.Entries[i])
		}
	}

	divisions := make([]string, 0, len(s.unplaced))
	for id := range s.unplaced {
		divisions = append(divisions, id)
	}
	sort.Strings(divisions)
	unplaced := make([]solver.Unplaced, 0)
	for _, id := range divisions {
		unplaced = append(unplaced, s.unplaced[id]...)
	}

	m := constraint.NewModel(*s.cfg)
	m.Order = s.opts.Order
	blocker := s.registry.Snapshot()
	if s.ws == nil {
		s.ws = resolution.NewWorkspace(m, blocker, entries, unplaced)
	} else {
		s.ws.Reload(m, blocker, entries, unplaced)
	}
	return nil
}

func (s *Scheduler) publishConflictsLocked() {
	active := make(map[string]int)
	for _, item := range s.ws.Items() {
		switch item.State {
		case resolution.StateIgnored, resolution.StateManualReview:
			continue
		}
		active[string(item.Type)]++
	}
	s.recorder.SetActiveConflicts(active)
}

func (s *Scheduler) report() *ConflictReport {
	items := s.ws.Items()
	return &ConflictReport{
		Conflicts: items,
		Active:    s.ws.ActiveCount(),
		ByType:    validator.CountByType(s.ws.Conflicts()),
	}
}

// Conflicts 返回当前冲突列表，首次调用时执行检测
func (s *Scheduler) Conflicts(ctx context.Context) (*ConflictReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ws == nil {
		if err := s.reloadLocked(ctx); err != nil {
			return nil, err
		}
		s.resolver.Detect(s.ws)
		s.publishConflictsLocked()
	}
	return s.report(), nil
}

// Detect 重新读取生效课表并检测，之前忽略的冲突若仍存在会重新出现
func (s *Scheduler) Detect(ctx context.Context) (*ConflictReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reloadLocked(ctx); err != nil {
		return nil, err
	}
	s.resolver.Detect(s.ws)
	s.publishConflictsLocked()
	return s.report(), nil
}

// Resolve 对当前冲突列表应用解决操作，并持久化被修改的课表
func (s *Scheduler) Resolve(ctx context.Context, actions map[int]resolution.Action) ([]resolution.Outcome, *ConflictReport, error) {
	s.pass.Lock()
	defer s.pass.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ws == nil {
		if err := s.reloadLocked(ctx); err != nil {
			return nil, nil, err
		}
		s.resolver.Detect(s.ws)
	}

	outcomes := s.resolver.Apply(ctx, s.ws, actions)
	for _, o := range outcomes {
		result := "success"
		if !o.Success {
			result = "failed"
		}
		s.recorder.ObserveResolution(string(o.Action), result)
	}

	for _, sc := range s.ws.Changed() {
		id, ok := s.tables[sc.Key()]
		if !ok {
			return outcomes, nil, errors.NotFound("timetable", sc.Key())
		}
		scoped := s.ws.EntriesFor(sc)
		entries := make([]model.TimetableEntry, len(scoped))
		for i, e := range scoped {
			e.TimetableID = id
			entries[i] = *e
		}
		if err := s.store.ReplaceEntries(ctx, id, entries); err != nil {
			return outcomes, nil, errors.Wrap(err, errors.CodeDatabaseError,
				fmt.Sprintf("保存课表 %s 失败", sc.Key()))
		}
	}
	s.ws.ResetChanged()

	s.unplaced = make(map[string][]solver.Unplaced)
	for _, u := range s.ws.Unplaced {
		s.unplaced[u.DivisionID] = append(s.unplaced[u.DivisionID], u)
	}
	s.publishConflictsLocked()
	return outcomes, s.report(), nil
}

// Timetables 返回生效课表，可按年级/班级过滤
func (s *Scheduler) Timetables(ctx context.Context, year, divisionID string) ([]*model.Timetable, error) {
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "读取生效课表失败")
	}
	out := make([]*model.Timetable, 0, len(active))
	for _, t := range active {
		if year != "" && t.Year != year {
			continue
		}
		if divisionID != "" && t.DivisionID != divisionID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Stats 统计教师课时和教室利用率
func (s *Scheduler) Stats(ctx context.Context) (*StatsReport, error) {
	cfg, ok := s.Config()
	if !ok {
		return nil, errors.New(errors.CodeInvalidConfiguration, "尚未提供课表配置")
	}
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "读取生效课表失败")
	}
	entries := make([]*model.TimetableEntry, 0)
	for _, t := range active {
		for i := range t.Entries {
			entries = append(entries, &t.Entries[i])
		}
	}
	return &StatsReport{
		Workload: stats.NewWorkloadAnalyzer().Analyze(entries, cfg.Teachers),
		Rooms:    stats.RoomUtilization(entries, cfg),
	}, nil
}

// RegisterRestriction 注册新的预约限制并持久化，持久化失败时撤销注册
// 已生成的课表不会自动调整，重新检测时会报告落在新封锁节次上的条目
func (s *Scheduler) RegisterRestriction(ctx context.Context, r *model.Restriction) error {
	if err := s.registry.Register(r); err != nil {
		return err
	}
	if s.restrictionStore == nil {
		return nil
	}
	if err := s.restrictionStore.Create(ctx, r); err != nil {
		s.registry.Remove(r.ID)
		return errors.Wrap(err, errors.CodeDatabaseError, "保存预约限制失败")
	}
	return nil
}

// CheckSlot 查询某节次是否被封锁
func (s *Scheduler) CheckSlot(slot, day int, year string) *model.Restriction {
	return s.registry.BlockingBooking(slot, day, year)
}

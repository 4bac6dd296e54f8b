package resolution

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/solver"
	"github.com/kebiao/kebiao/pkg/validator"
)

// Outcome 单个冲突的处理结果
type Outcome struct {
	Index   int    `json:"index"`
	Action  Action `json:"action"`
	State   State  `json:"state"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Note    string `json:"note,omitempty"`
}

// Engine 冲突解决引擎
type Engine struct {
	placer   *solver.Placer
	detector *validator.ConflictDetector
	logger   *logger.SchedulerLogger
	now      func() time.Time
}

// NewEngine 创建解决引擎
func NewEngine(cm *constraint.Manager, detector *validator.ConflictDetector) *Engine {
	if detector == nil {
		detector = validator.NewConflictDetector()
	}
	return &Engine{
		placer:   solver.NewPlacer(cm),
		detector: detector,
		logger:   logger.NewSchedulerLogger(),
		now:      time.Now,
	}
}

// Detect 重新检测，之前被忽略的冲突若仍存在会重新出现
func (e *Engine) Detect(ws *Workspace) []validator.Conflict {
	ws.refresh(e.detector, true)
	e.logger.ConflictsDetected(len(ws.conflicts), validator.CountByType(ws.conflicts))
	return ws.conflicts
}

// Apply 按下标升序处理一批解决操作
// 每个下标独立处理，某个下标失败只回滚它自己的修改
func (e *Engine) Apply(ctx context.Context, ws *Workspace, actions map[int]Action) []Outcome {
	indexes := make([]int, 0, len(actions))
	for idx := range actions {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	// 下标以请求时的冲突列表为准
	snapshot := append([]validator.Conflict(nil), ws.conflicts...)

	outcomes := make([]Outcome, 0, len(indexes))
	for _, idx := range indexes {
		action := actions[idx]
		out := Outcome{Index: idx, Action: action, State: StateDetected}

		var err error
		switch {
		case ctx.Err() != nil:
			err = errors.Wrap(ctx.Err(), errors.CodeTimeout, "解决操作已取消")
		case idx < 0 || idx >= len(snapshot):
			err = errors.InvalidInput("index", fmt.Sprintf("冲突下标 %d 不存在", idx))
		case !action.Valid():
			err = errors.InvalidInput("action", fmt.Sprintf("未知操作 %s", action))
		case !ws.present(snapshot[idx].Fingerprint):
			// 已被本批次前面的操作消除，不再修改条目
			out.State = StateAutoResolved
			if s, ok := ws.states[snapshot[idx].Fingerprint]; ok {
				out.State = s
			}
			out.Note = "冲突已不存在"
		default:
			out.State, err = e.applyOne(ws, &snapshot[idx], action)
		}

		if err != nil {
			out.Success = false
			out.Error = err.Error()
			out.Code = string(errors.GetCode(err))
		} else {
			out.Success = true
		}
		e.logger.ResolutionApplied(idx, string(action), string(out.State), err)
		outcomes = append(outcomes, out)
	}

	ws.refresh(e.detector, false)
	return outcomes
}

func (e *Engine) applyOne(ws *Workspace, c *validator.Conflict, action Action) (State, error) {
	switch action {
	case ActionIgnore:
		ws.states[c.Fingerprint] = StateIgnored
		return StateIgnored, nil
	case ActionManualReview:
		ws.states[c.Fingerprint] = StateManualReview
		return StateManualReview, nil
	}

	tx := newChange(ws)
	var visitor validator.Visitor
	state := StateAutoResolved
	if action == ActionRelax {
		visitor = &relaxer{engine: e, ws: ws, tx: tx}
		state = StateRelaxApplied
	} else {
		visitor = &autoResolver{engine: e, ws: ws, tx: tx}
	}

	if err := c.Accept(visitor); err != nil {
		tx.rollback()
		return ws.StateOf(c.Fingerprint), err
	}
	tx.commit()
	ws.states[c.Fingerprint] = state
	ws.refresh(e.detector, false)
	return state, nil
}

// change 单个冲突处理期间的修改记录
type change struct {
	ws       *Workspace
	saved    map[*model.TimetableEntry]model.TimetableEntry
	entries  int
	unplaced []solver.Unplaced
}

func newChange(ws *Workspace) *change {
	return &change{
		ws:       ws,
		saved:    make(map[*model.TimetableEntry]model.TimetableEntry),
		entries:  len(ws.Entries),
		unplaced: append([]solver.Unplaced(nil), ws.Unplaced...),
	}
}

// touch 修改条目前保存原值
func (c *change) touch(e *model.TimetableEntry) {
	if _, ok := c.saved[e]; !ok {
		saved := *e
		saved.Overrides = append(model.Overrides(nil), e.Overrides...)
		c.saved[e] = saved
	}
}

func (c *change) rollback() {
	for e, saved := range c.saved {
		*e = saved
	}
	c.ws.Entries = c.ws.Entries[:c.entries]
	c.ws.Unplaced = c.unplaced
}

func (c *change) commit() {
	for e := range c.saved {
		c.ws.markChanged(e)
	}
	for _, e := range c.ws.Entries[c.entries:] {
		c.ws.markChanged(e)
	}
}

// occupancyWithout 除指定条目外的占用索引
func (e *Engine) occupancyWithout(ws *Workspace, skip ...*model.TimetableEntry) *constraint.Context {
	others := make([]*model.TimetableEntry, 0, len(ws.Entries))
	for _, entry := range ws.Entries {
		excluded := false
		for _, s := range skip {
			if entry == s {
				excluded = true
				break
			}
		}
		if !excluded {
			others = append(others, entry)
		}
	}
	occ := constraint.NewContext(ws.Model, ws.Blocker)
	occ.SetEntries(others)
	return occ
}

func requestFor(entry *model.TimetableEntry, teachers []string) solver.Request {
	return solver.Request{
		DivisionID: entry.DivisionID,
		Year:       entry.Year,
		SubjectID:  entry.SubjectID,
		Batch:      entry.Batch,
		Length:     entry.Length(),
		TeacherIDs: teachers,
	}
}

// moveTo 将条目移动到新位置
func moveTo(tx *change, entry, placed *model.TimetableEntry) {
	tx.touch(entry)
	entry.Day = placed.Day
	entry.TimeSlot = placed.TimeSlot
	entry.TeacherID = placed.TeacherID
	entry.RoomID = placed.RoomID
	entry.RoomType = placed.RoomType
	entry.IsLabSession = placed.IsLabSession
}

func sortScopes(scopes []model.Scope) {
	sort.Slice(scopes, func(i, j int) bool { return scopes[i].Less(scopes[j]) })
}

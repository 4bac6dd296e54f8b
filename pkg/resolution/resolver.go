package resolution

import (
	"fmt"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/solver"
	"github.com/kebiao/kebiao/pkg/validator"
)

// autoResolver 自动解决：只重新安排冲突涉及的条目
type autoResolver struct {
	engine *Engine
	ws     *Workspace
	tx     *change
}

func (r *autoResolver) entries(c *validator.Conflict) []*model.TimetableEntry {
	out := make([]*model.TimetableEntry, 0, len(c.Entries))
	for _, i := range c.Entries {
		if i >= 0 && i < len(r.ws.Entries) {
			out = append(out, r.ws.Entries[i])
		}
	}
	return out
}

// relocate 将条目移到其它 (天, 节次)，排除当前位置
func (r *autoResolver) relocate(entry *model.TimetableEntry) string {
	occ := r.engine.occupancyWithout(r.ws, entry)
	day, slot := entry.Day, entry.TimeSlot
	placed, reason := r.engine.placer.Place(occ, requestFor(entry, []string{entry.TeacherID}), solver.PlaceOptions{
		Exclude: func(d, s int) bool { return d == day && s == slot },
		Relax:   relaxedFor(entry),
	})
	if placed == nil {
		return reason
	}
	moveTo(r.tx, entry, placed)
	return ""
}

// relaxedFor 条目上已放宽的规则在重新安排时继续放宽
func relaxedFor(entry *model.TimetableEntry) []constraint.Type {
	var out []constraint.Type
	for _, t := range []constraint.Type{constraint.TypeWorkload, constraint.TypeContiguity} {
		if entry.HasOverride(t.OverrideRule()) {
			out = append(out, t)
		}
	}
	return out
}

// relocateAny 依次尝试移动冲突中的条目（后出现的优先）
func (r *autoResolver) relocateAny(c *validator.Conflict, try func(*model.TimetableEntry) string) error {
	entries := r.entries(c)
	if len(entries) == 0 {
		return errors.Unresolvable(string(c.Type), "冲突没有关联条目")
	}
	reason := ""
	for i := len(entries) - 1; i >= 0; i-- {
		if reason = try(entries[i]); reason == "" {
			return nil
		}
	}
	return errors.Unresolvable(string(c.Type), "没有可用的替代位置："+reason)
}

// VisitTeacherConflict 移动其中一节课
func (r *autoResolver) VisitTeacherConflict(c *validator.Conflict) error {
	return r.relocateAny(c, r.relocate)
}

// VisitRoomConflict 先在原位置更换教室，再尝试移动
func (r *autoResolver) VisitRoomConflict(c *validator.Conflict) error {
	err := r.relocateAny(c, func(entry *model.TimetableEntry) string {
		occ := r.engine.occupancyWithout(r.ws, entry)
		placed, reason := r.engine.placer.Place(occ, requestFor(entry, []string{entry.TeacherID}), solver.PlaceOptions{
			Day:      entry.Day,
			Slot:     entry.TimeSlot,
			SkipRoom: entry.RoomID,
			Relax:    relaxedFor(entry),
		})
		if placed == nil {
			return reason
		}
		moveTo(r.tx, entry, placed)
		return ""
	})
	if err == nil {
		return nil
	}
	return r.relocateAny(c, r.relocate)
}

// VisitWorkloadExceeded 将该教师的课程改由其他候选教师承担，直到不超限
func (r *autoResolver) VisitWorkloadExceeded(c *validator.Conflict) error {
	teacher := r.ws.Model.Teacher(c.TeacherID)
	if teacher == nil || teacher.MaxLoad <= 0 {
		return errors.Unresolvable(string(c.Type), "教师不存在或未设置课时上限")
	}

	load := 0
	for _, e := range r.entries(c) {
		load += e.Length()
	}

	entries := r.entries(c)
	for i := len(entries) - 1; i >= 0 && load > teacher.MaxLoad; i-- {
		entry := entries[i]
		alternatives := r.alternativeTeachers(entry)
		if len(alternatives) == 0 {
			continue
		}
		occ := r.engine.occupancyWithout(r.ws, entry)
		req := requestFor(entry, alternatives)
		placed, _ := r.engine.placer.Place(occ, req, solver.PlaceOptions{Day: entry.Day, Slot: entry.TimeSlot})
		if placed == nil {
			placed, _ = r.engine.placer.Place(occ, req, solver.PlaceOptions{})
		}
		if placed == nil {
			continue
		}
		moveTo(r.tx, entry, placed)
		load -= entry.Length()
	}

	if load > teacher.MaxLoad {
		return errors.Unresolvable(string(c.Type),
			fmt.Sprintf("教师 %s 的课程无法改由其他教师承担，仍有 %d 节", teacher.Name, load))
	}
	return nil
}

// alternativeTeachers 开课任务中除当前教师外的候选教师
func (r *autoResolver) alternativeTeachers(entry *model.TimetableEntry) []string {
	var out []string
	for _, o := range r.ws.Model.Offerings() {
		if o.DivisionID != entry.DivisionID || o.SubjectID != entry.SubjectID || o.BatchOrAll() != entry.Batch {
			continue
		}
		for _, id := range o.TeacherIDs {
			if id != entry.TeacherID {
				out = append(out, id)
			}
		}
	}
	return out
}

// VisitSchedulingConflict 重新安排条目，或为无法安排的单元寻找位置
func (r *autoResolver) VisitSchedulingConflict(c *validator.Conflict) error {
	if c.Session != nil {
		return r.placeSession(c)
	}
	return r.relocateAny(c, r.relocate)
}

// VisitLabSchedulingConflict 重新安排实验课
func (r *autoResolver) VisitLabSchedulingConflict(c *validator.Conflict) error {
	switch {
	case c.Session != nil:
		return r.placeSession(c)
	case c.Code == validator.CodeBatchAll:
		return errors.Unresolvable(string(c.Type), "需要人工按实验分组拆分课程")
	case c.Code == validator.CodeShortBlock:
		return errors.Unresolvable(string(c.Type), "连堂节数不足，无法通过移动解决")
	case c.Code == validator.CodeWrongRoom:
		return r.relocateAny(c, func(entry *model.TimetableEntry) string {
			occ := r.engine.occupancyWithout(r.ws, entry)
			placed, _ := r.engine.placer.Place(occ, requestFor(entry, []string{entry.TeacherID}), solver.PlaceOptions{
				Day:  entry.Day,
				Slot: entry.TimeSlot,
			})
			if placed == nil {
				return r.relocate(entry)
			}
			moveTo(r.tx, entry, placed)
			return ""
		})
	}
	return r.relocateAny(c, r.relocate)
}

// placeSession 为生成时无法安排的单元寻找位置
func (r *autoResolver) placeSession(c *validator.Conflict) error {
	occ := r.engine.occupancyWithout(r.ws)
	placed, reason := r.engine.placer.Place(occ, c.Session.Request(), solver.PlaceOptions{})
	if placed == nil {
		return errors.Unresolvable(string(c.Type), "仍然无法安排："+reason)
	}
	r.ws.Entries = append(r.ws.Entries, placed)
	r.ws.removeUnplaced(c.Session.Key())
	return nil
}

// relaxer 放宽约束：只适用于周课时和连堂
type relaxer struct {
	engine *Engine
	ws     *Workspace
	tx     *change
}

func notApplicable(c *validator.Conflict) error {
	return errors.New(errors.CodeActionNotApplicable,
		fmt.Sprintf("%s 不能通过放宽约束解决", c.Type))
}

func (r *relaxer) override(rule model.OverrideRule, c *validator.Conflict) model.Override {
	return model.Override{
		Rule:         rule,
		ConflictType: string(c.Type),
		AppliedAt:    r.engine.now(),
		Note:         c.Description,
	}
}

func (r *relaxer) VisitTeacherConflict(c *validator.Conflict) error { return notApplicable(c) }
func (r *relaxer) VisitRoomConflict(c *validator.Conflict) error    { return notApplicable(c) }

// VisitSchedulingConflict 预约封锁和资源不足不能放宽
func (r *relaxer) VisitSchedulingConflict(c *validator.Conflict) error { return notApplicable(c) }

// VisitWorkloadExceeded 为该教师的条目附加周课时放宽标记
func (r *relaxer) VisitWorkloadExceeded(c *validator.Conflict) error {
	o := r.override(model.RuleWorkload, c)
	for _, i := range c.Entries {
		if i < 0 || i >= len(r.ws.Entries) {
			continue
		}
		e := r.ws.Entries[i]
		r.tx.touch(e)
		e.AddOverride(o)
	}
	return nil
}

// VisitLabSchedulingConflict 附加连堂放宽标记；无法安排的连堂课拆成单节安排
func (r *relaxer) VisitLabSchedulingConflict(c *validator.Conflict) error {
	o := r.override(model.RuleContiguity, c)

	if c.Session != nil {
		return r.placeAsSingles(c, o)
	}
	if c.Code != validator.CodeBrokenBlock && c.Code != validator.CodeShortBlock {
		return notApplicable(c)
	}
	for _, i := range c.Entries {
		if i < 0 || i >= len(r.ws.Entries) {
			continue
		}
		e := r.ws.Entries[i]
		r.tx.touch(e)
		e.AddOverride(o)
	}
	return nil
}

// placeAsSingles 将无法安排的连堂单元拆成单节，全部成功才生效
func (r *relaxer) placeAsSingles(c *validator.Conflict, o model.Override) error {
	occ := r.engine.occupancyWithout(r.ws)
	req := c.Session.Request()
	req.Length = 1

	placed := make([]*model.TimetableEntry, 0, c.Session.Length)
	for k := 0; k < c.Session.Length; k++ {
		entry, reason := r.engine.placer.Place(occ, req, solver.PlaceOptions{})
		if entry == nil {
			return errors.Unresolvable(string(c.Type), fmt.Sprintf("拆分后第 %d 节仍无法安排：%s", k+1, reason))
		}
		entry.AddOverride(o)
		occ.AddEntry(entry)
		placed = append(placed, entry)
	}
	r.ws.Entries = append(r.ws.Entries, placed...)
	r.ws.removeUnplaced(c.Session.Key())
	return nil
}

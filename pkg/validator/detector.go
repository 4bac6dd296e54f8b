package validator

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/restriction"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
	"github.com/kebiao/kebiao/pkg/scheduler/solver"
)

// Input 检测输入：当前全部生效条目的只读快照
type Input struct {
	Model    *constraint.Model
	Blocker  restriction.Blocker
	Entries  []*model.TimetableEntry
	Unplaced []solver.Unplaced
}

// ConflictDetector 冲突检测器
// 检测是纯读取操作，同一输入多次检测得到相同顺序、相同内容的结果
type ConflictDetector struct{}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector() *ConflictDetector {
	return &ConflictDetector{}
}

// Detect 检测所有冲突
func (d *ConflictDetector) Detect(in Input) []Conflict {
	conflicts := make([]Conflict, 0)
	if in.Model == nil {
		return conflicts
	}

	conflicts = append(conflicts, d.detectOverlaps(in, ConflictTeacher)...)
	conflicts = append(conflicts, d.detectOverlaps(in, ConflictRoom)...)
	conflicts = append(conflicts, d.detectWorkload(in)...)
	conflicts = append(conflicts, d.detectScheduling(in)...)
	conflicts = append(conflicts, d.detectLab(in)...)
	conflicts = append(conflicts, d.detectUnplaced(in)...)

	for i := range conflicts {
		conflicts[i].Fingerprint = conflicts[i].fingerprint()
	}
	sortConflicts(conflicts)
	return conflicts
}

// cellsOf 条目占用的节次，节次未知时只占起始节次
func cellsOf(m *constraint.Model, e *model.TimetableEntry) []int {
	cells := m.Grid.Cover(e.TimeSlot, e.Length())
	if len(cells) == 0 {
		return []int{e.TimeSlot}
	}
	return cells
}

func overlaps(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// detectOverlaps 检测教师或教室在同一天同一节次被重复占用，每对条目一条冲突
func (d *ConflictDetector) detectOverlaps(in Input, typ ConflictType) []Conflict {
	type group struct {
		resource string
		day      int
	}
	resourceOf := func(e *model.TimetableEntry) string {
		if typ == ConflictTeacher {
			return e.TeacherID
		}
		return e.RoomID
	}

	groups := make(map[group][]int)
	for i, e := range in.Entries {
		r := resourceOf(e)
		if r == "" {
			continue
		}
		k := group{r, e.Day}
		groups[k] = append(groups[k], i)
	}

	var conflicts []Conflict
	for k, idx := range groups {
		for a := 0; a < len(idx); a++ {
			for b := a + 1; b < len(idx); b++ {
				ea, eb := in.Entries[idx[a]], in.Entries[idx[b]]
				if !overlaps(cellsOf(in.Model, ea), cellsOf(in.Model, eb)) {
					continue
				}
				c := Conflict{
					Type:     typ,
					Code:     CodeOverlap,
					Entries:  []int{idx[a], idx[b]},
					EntryIDs: []uuid.UUID{ea.ID, eb.ID},
				}
				if typ == ConflictTeacher {
					c.Description = fmt.Sprintf("教师 %s 在第%d天第%d节同时为 %s 和 %s 上课",
						k.resource, k.day, eb.TimeSlot, ea.DivisionID, eb.DivisionID)
					c.Suggestion = "将其中一节课调整到教师空闲的节次"
				} else {
					c.Description = fmt.Sprintf("教室 %s 在第%d天第%d节同时被 %s 和 %s 使用",
						k.resource, k.day, eb.TimeSlot, ea.DivisionID, eb.DivisionID)
					c.Suggestion = "为其中一节课更换同类型的空闲教室"
				}
				conflicts = append(conflicts, c)
			}
		}
	}
	return conflicts
}

// detectWorkload 检测教师周课时超限，已放宽周课时的教师跳过
func (d *ConflictDetector) detectWorkload(in Input) []Conflict {
	byTeacher := make(map[string][]int)
	for i, e := range in.Entries {
		byTeacher[e.TeacherID] = append(byTeacher[e.TeacherID], i)
	}

	teacherIDs := make([]string, 0, len(byTeacher))
	for id := range byTeacher {
		teacherIDs = append(teacherIDs, id)
	}
	sort.Strings(teacherIDs)

	var conflicts []Conflict
	for _, id := range teacherIDs {
		teacher := in.Model.Teacher(id)
		if teacher == nil || teacher.MaxLoad <= 0 {
			continue
		}
		load, relaxed := 0, false
		ids := make([]uuid.UUID, 0, len(byTeacher[id]))
		for _, i := range byTeacher[id] {
			e := in.Entries[i]
			load += e.Length()
			ids = append(ids, e.ID)
			if e.HasOverride(model.RuleWorkload) {
				relaxed = true
			}
		}
		if load <= teacher.MaxLoad || relaxed {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Type:        ConflictWorkload,
			Code:        CodeOverload,
			Description: fmt.Sprintf("教师 %s 周课时 %d 超过上限 %d", teacher.Name, load, teacher.MaxLoad),
			Suggestion:  "将部分课程改由其他候选教师承担，或放宽该教师的课时上限",
			Entries:     append([]int(nil), byTeacher[id]...),
			EntryIDs:    ids,
			TeacherID:   id,
		})
	}
	return conflicts
}

// detectScheduling 检测落在非法位置、封锁节次或教师不可用节次的条目
func (d *ConflictDetector) detectScheduling(in Input) []Conflict {
	var conflicts []Conflict
	for i, e := range in.Entries {
		code, desc := d.schedulingProblem(in, e)
		if code == "" {
			continue
		}
		c := Conflict{
			Type:        ConflictScheduling,
			Code:        code,
			Description: desc,
			Entries:     []int{i},
			EntryIDs:    []uuid.UUID{e.ID},
		}
		switch code {
		case CodeBlocked:
			c.Suggestion = "该节次已被预约，请将课程移到其他节次"
		case CodeUnavailable:
			c.Suggestion = "将课程移到教师可用的节次或更换教师"
		default:
			c.Suggestion = "将课程移到工作日的上课节次"
		}
		conflicts = append(conflicts, c)
	}
	return conflicts
}

func (d *ConflictDetector) schedulingProblem(in Input, e *model.TimetableEntry) (Code, string) {
	m := in.Model
	if !m.IsWorkingDay(e.Day) {
		return CodeInvalidSlot, fmt.Sprintf("%s 的 %s 安排在非工作日（第%d天）", e.DivisionID, e.SubjectID, e.Day)
	}
	if !m.Grid.IsTeaching(e.TimeSlot) {
		return CodeInvalidSlot, fmt.Sprintf("%s 的 %s 安排在非上课节次（第%d节）", e.DivisionID, e.SubjectID, e.TimeSlot)
	}

	cells := cellsOf(m, e)
	if in.Blocker != nil {
		for _, slot := range cells {
			if b := in.Blocker.BlockingBooking(slot, e.Day, e.Year); b != nil {
				return CodeBlocked, fmt.Sprintf("%s 的 %s 位于第%d天第%d节，该节次已被预约封锁（%s）",
					e.DivisionID, e.SubjectID, e.Day, slot, b.Reason)
			}
		}
	}
	if t := m.Teacher(e.TeacherID); t != nil {
		for _, slot := range cells {
			if !t.IsAvailable(e.Day, slot) {
				return CodeUnavailable, fmt.Sprintf("教师 %s 在第%d天第%d节不可用", t.Name, e.Day, slot)
			}
		}
	}
	return "", ""
}

// detectLab 检测实验/连堂课的完整性
func (d *ConflictDetector) detectLab(in Input) []Conflict {
	m := in.Model
	exempt := shortBlockExemptions(in)

	var conflicts []Conflict
	for i, e := range in.Entries {
		subject := m.Subject(e.SubjectID)
		if subject == nil {
			continue
		}
		isLab := e.IsLabSession || subject.Kind == model.SubjectPractical
		if !isLab && !subject.IsContiguous() {
			continue
		}

		var code Code
		var desc string
		relaxed := e.HasOverride(model.RuleContiguity)

		if div := m.Division(e.DivisionID); isLab && div != nil && div.HasSubBatches() && e.Batch == model.BatchAll {
			code, desc = CodeBatchAll, fmt.Sprintf("%s 已划分实验分组，%s 不能以 ALL 分组上课", e.DivisionID, subject.Name)
		} else if room := m.Room(e.RoomID); subject.Kind == model.SubjectPractical && room != nil && room.Type != model.RoomLab {
			code, desc = CodeWrongRoom, fmt.Sprintf("实验课 %s 安排在非实验室 %s", subject.Name, room.Name)
		} else if _, ok := m.Grid.Run(e.TimeSlot, e.Length()); !ok && e.Length() > 1 && !relaxed {
			code, desc = CodeBrokenBlock, fmt.Sprintf("%s 的 %s 在第%d天第%d节起的 %d 节连堂跨越了课间或午休",
				e.DivisionID, subject.Name, e.Day, e.TimeSlot, e.Length())
		} else if e.Length() < subject.Block() && !relaxed && !exempt[i] {
			code, desc = CodeShortBlock, fmt.Sprintf("%s 的 %s 需要连续 %d 节，实际只有 %d 节",
				e.DivisionID, subject.Name, subject.Block(), e.Length())
		}
		if code == "" {
			continue
		}

		c := Conflict{
			Type:        ConflictLabScheduling,
			Code:        code,
			Description: desc,
			Entries:     []int{i},
			EntryIDs:    []uuid.UUID{e.ID},
		}
		switch code {
		case CodeBatchAll:
			c.Suggestion = "按实验分组分别开课"
		case CodeWrongRoom:
			c.Suggestion = "更换为实验室"
		default:
			c.Suggestion = "调整到不跨越休息的连续节次，或放宽连堂要求"
		}
		conflicts = append(conflicts, c)
	}
	return conflicts
}

// shortBlockExemptions 连堂课总课时不能被连堂节数整除时，允许一个余数长度的条目
func shortBlockExemptions(in Input) map[int]bool {
	type key struct {
		division, subject string
		batch             model.Batch
	}
	totals := make(map[key]int)
	members := make(map[key][]int)
	for i, e := range in.Entries {
		k := key{e.DivisionID, e.SubjectID, e.Batch}
		totals[k] += e.Length()
		members[k] = append(members[k], i)
	}

	exempt := make(map[int]bool)
	for k, idx := range members {
		subject := in.Model.Subject(k.subject)
		if subject == nil || !subject.IsContiguous() {
			continue
		}
		rem := totals[k] % subject.Block()
		if rem == 0 {
			continue
		}
		for _, i := range idx {
			if in.Entries[i].Length() == rem {
				exempt[i] = true
				break
			}
		}
	}
	return exempt
}

// detectUnplaced 生成阶段无法安排的单元
func (d *ConflictDetector) detectUnplaced(in Input) []Conflict {
	var conflicts []Conflict
	for i := range in.Unplaced {
		u := in.Unplaced[i]
		c := Conflict{
			Type:    ConflictScheduling,
			Code:    CodeUnplaced,
			Session: &u,
			Description: u.Err().Message,
			Suggestion: "放宽约束或增加教师、教室资源",
		}
		if u.Contiguous {
			c.Type = ConflictLabScheduling
			c.Description = fmt.Sprintf("%s/%s 的 %s 找不到连续 %d 节的位置：%s",
				u.DivisionID, u.Batch, u.SubjectID, u.Length, u.Reason)
			c.Suggestion = "放宽连堂要求或增加实验室资源"
		}
		conflicts = append(conflicts, c)
	}
	return conflicts
}

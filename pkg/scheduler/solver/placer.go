package solver

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// Request 单个排课单元
type Request struct {
	DivisionID string
	Year       string
	SubjectID  string
	Batch      model.Batch
	Length     int
	TeacherIDs []string // 候选教师，按优先顺序
}

// PlaceOptions 放置选项
type PlaceOptions struct {
	// Exclude 返回 true 的 (天, 节次) 不作为起始位置
	Exclude func(day, slot int) bool

	// Relax 跳过的规则类型
	Relax []constraint.Type

	// Day/Slot 非零时只尝试该起始位置
	Day  int
	Slot int

	// SkipRoom 不考虑的教室
	SkipRoom string
}

// Placer 单元放置器：按 天 -> 节次 -> 教师 -> 教室 顺序寻找第一个合法位置
type Placer struct {
	manager *constraint.Manager
}

// NewPlacer 创建放置器
func NewPlacer(m *constraint.Manager) *Placer {
	return &Placer{manager: m}
}

// Place 为单元寻找位置，成功返回新条目（未写入上下文）
// 失败时返回出现次数最多的拒绝原因
func (p *Placer) Place(ctx *constraint.Context, req Request, opts PlaceOptions) (*model.TimetableEntry, string) {
	m := ctx.Model
	subject := m.Subject(req.SubjectID)
	if subject == nil {
		return nil, fmt.Sprintf("课程 %s 不存在", req.SubjectID)
	}
	if len(req.TeacherIDs) == 0 {
		return nil, "没有候选教师"
	}

	roomType := model.RoomTypeFor(subject.Kind)
	rooms := make([]*model.Room, 0)
	for _, r := range m.Rooms() {
		if r.Type == roomType && r.ID != opts.SkipRoom {
			rooms = append(rooms, r)
		}
	}
	if len(rooms) == 0 {
		return nil, fmt.Sprintf("没有类型为 %s 的可用教室", roomType)
	}

	groupSize := 0
	if div := m.Division(req.DivisionID); div != nil {
		groupSize = div.GroupSize(req.Batch)
	}
	length := req.Length
	if length < 1 {
		length = 1
	}

	tally := newReasonTally()
	for _, day := range m.WorkingDays {
		if opts.Day != 0 && day != opts.Day {
			continue
		}
		for _, slot := range m.Grid.TeachingSlots() {
			if opts.Slot != 0 && slot != opts.Slot {
				continue
			}
			if opts.Exclude != nil && opts.Exclude(day, slot) {
				continue
			}
			cells := m.Grid.Cover(slot, length)
			for _, teacherID := range req.TeacherIDs {
				for _, room := range rooms {
					candidate := &constraint.Placement{
						DivisionID:       req.DivisionID,
						Year:             req.Year,
						Batch:            req.Batch,
						SubjectID:        req.SubjectID,
						TeacherID:        teacherID,
						RoomID:           room.ID,
						RequiredRoomType: roomType,
						GroupSize:        groupSize,
						Day:              day,
						Slot:             slot,
						Length:           length,
						Cells:            cells,
					}
					ok, typ, reason := p.manager.CanPlace(ctx, candidate, opts.Relax...)
					if ok {
						entry := candidate.ToEntry()
						entry.ID = uuid.New()
						return entry, ""
					}
					tally.add(typ, reason)
				}
			}
		}
	}

	if tally.empty() {
		return nil, "没有可尝试的位置"
	}
	return nil, tally.top()
}

// reasonTally 统计拒绝原因
type reasonTally struct {
	counts  map[constraint.Type]int
	samples map[constraint.Type]string
	order   []constraint.Type
}

func newReasonTally() *reasonTally {
	return &reasonTally{
		counts:  make(map[constraint.Type]int),
		samples: make(map[constraint.Type]string),
	}
}

func (t *reasonTally) add(typ constraint.Type, reason string) {
	if _, seen := t.counts[typ]; !seen {
		t.order = append(t.order, typ)
		t.samples[typ] = reason
	}
	t.counts[typ]++
}

func (t *reasonTally) empty() bool {
	return len(t.order) == 0
}

// top 出现最多的原因，次数相同时取先出现的
func (t *reasonTally) top() string {
	var best constraint.Type
	for _, typ := range t.order {
		if best == "" || t.counts[typ] > t.counts[best] {
			best = typ
		}
	}
	return t.samples[best]
}

package constraint

import (
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/restriction"
)

type cell struct {
	day  int
	slot int
}

type noBlocks struct{}

func (noBlocks) IsBlocked(int, int, string) bool                        { return false }
func (noBlocks) BlockingBooking(int, int, string) *model.Restriction { return nil }

// Context 排课上下文：约束模型 + 全局占用索引
// 教师和教室是跨班级共享的资源，同一索引在一次多班级生成过程中被所有班级使用。
// Context 本身不加锁，调用方需保证一次生成期间独占访问。
type Context struct {
	Model        *Model
	Restrictions restriction.Blocker

	// 生成目标班级，为空表示全部
	Targets []string

	// 当前已占用的条目
	Entries []*model.TimetableEntry

	teacherBusy map[string]map[cell]*model.TimetableEntry
	roomBusy    map[string]map[cell]*model.TimetableEntry
	scopeBusy   map[string]map[cell][]model.Batch
	teacherLoad map[string]int
}

// NewContext 创建排课上下文
func NewContext(m *Model, blocker restriction.Blocker) *Context {
	if blocker == nil {
		blocker = noBlocks{}
	}
	c := &Context{
		Model:        m,
		Restrictions: blocker,
		Entries:      make([]*model.TimetableEntry, 0),
	}
	c.rebuildIndexes()
	return c
}

// SetEntries 设置已有条目（例如其它班级当前生效的课表）
func (c *Context) SetEntries(entries []*model.TimetableEntry) {
	c.Entries = entries
	c.rebuildIndexes()
}

// AddEntry 添加条目并更新索引
func (c *Context) AddEntry(e *model.TimetableEntry) {
	c.Entries = append(c.Entries, e)
	c.index(e)
}

// rebuildIndexes 重建占用索引
func (c *Context) rebuildIndexes() {
	c.teacherBusy = make(map[string]map[cell]*model.TimetableEntry)
	c.roomBusy = make(map[string]map[cell]*model.TimetableEntry)
	c.scopeBusy = make(map[string]map[cell][]model.Batch)
	c.teacherLoad = make(map[string]int)
	for _, e := range c.Entries {
		c.index(e)
	}
}

func (c *Context) index(e *model.TimetableEntry) {
	c.teacherLoad[e.TeacherID] += e.Length()
	for _, slot := range c.Model.Grid.Cover(e.TimeSlot, e.Length()) {
		k := cell{e.Day, slot}
		if c.teacherBusy[e.TeacherID] == nil {
			c.teacherBusy[e.TeacherID] = make(map[cell]*model.TimetableEntry)
		}
		if _, taken := c.teacherBusy[e.TeacherID][k]; !taken {
			c.teacherBusy[e.TeacherID][k] = e
		}
		if c.roomBusy[e.RoomID] == nil {
			c.roomBusy[e.RoomID] = make(map[cell]*model.TimetableEntry)
		}
		if _, taken := c.roomBusy[e.RoomID][k]; !taken {
			c.roomBusy[e.RoomID][k] = e
		}
		if c.scopeBusy[e.DivisionID] == nil {
			c.scopeBusy[e.DivisionID] = make(map[cell][]model.Batch)
		}
		c.scopeBusy[e.DivisionID][k] = append(c.scopeBusy[e.DivisionID][k], e.Batch)
	}
}

// TeacherBusy 教师在某天某节是否已有课
func (c *Context) TeacherBusy(teacherID string, day, slot int) bool {
	_, busy := c.teacherBusy[teacherID][cell{day, slot}]
	return busy
}

// RoomBusy 教室在某天某节是否已被占用
func (c *Context) RoomBusy(roomID string, day, slot int) bool {
	_, busy := c.roomBusy[roomID][cell{day, slot}]
	return busy
}

// ScopeBusy 班级的某分组在某天某节是否已有课
// ALL 分组与该班级所有分组互斥，不同子分组之间可以并行
func (c *Context) ScopeBusy(divisionID string, batch model.Batch, day, slot int) bool {
	for _, b := range c.scopeBusy[divisionID][cell{day, slot}] {
		if b.Overlaps(batch) {
			return true
		}
	}
	return false
}

// TeacherLoad 教师当前周课时
func (c *Context) TeacherLoad(teacherID string) int {
	return c.teacherLoad[teacherID]
}

// IsTarget 班级是否为本次生成目标
func (c *Context) IsTarget(divisionID string) bool {
	if len(c.Targets) == 0 {
		return true
	}
	for _, id := range c.Targets {
		if id == divisionID {
			return true
		}
	}
	return false
}

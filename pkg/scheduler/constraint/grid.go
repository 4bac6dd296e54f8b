package constraint

import "github.com/kebiao/kebiao/pkg/model"

// Grid 按顺序排列的一周节次表
type Grid struct {
	slots    []model.TimeSlot
	position map[int]int // 节次号 -> 下标
}

// NewGrid 创建节次表，保持配置中的顺序
func NewGrid(slots []model.TimeSlot) *Grid {
	g := &Grid{
		slots:    append([]model.TimeSlot(nil), slots...),
		position: make(map[int]int, len(slots)),
	}
	for i, s := range g.slots {
		g.position[s.Number] = i
	}
	return g
}

// Slots 返回所有节次
func (g *Grid) Slots() []model.TimeSlot {
	return g.slots
}

// TeachingSlots 返回可排课的节次号，按顺序
func (g *Grid) TeachingSlots() []int {
	var out []int
	for _, s := range g.slots {
		if s.IsTeaching() {
			out = append(out, s.Number)
		}
	}
	return out
}

// Slot 查找节次
func (g *Grid) Slot(number int) (model.TimeSlot, bool) {
	i, ok := g.position[number]
	if !ok {
		return model.TimeSlot{}, false
	}
	return g.slots[i], true
}

// IsTeaching 节次是否存在且可排课
func (g *Grid) IsTeaching(number int) bool {
	s, ok := g.Slot(number)
	return ok && s.IsTeaching()
}

// Cover 返回从 start 开始连续 length 个位置上的节次号（包含休息节次）
// 若超出当天节次表则返回的数量少于 length
func (g *Grid) Cover(start, length int) []int {
	i, ok := g.position[start]
	if !ok {
		return nil
	}
	if length < 1 {
		length = 1
	}
	out := make([]int, 0, length)
	for k := i; k < len(g.slots) && len(out) < length; k++ {
		out = append(out, g.slots[k].Number)
	}
	return out
}

// Run 返回从 start 开始的连续上课节次，跨越课间或午休时 ok 为 false
func (g *Grid) Run(start, length int) (cells []int, ok bool) {
	cells = g.Cover(start, length)
	if len(cells) != length || length < 1 {
		return cells, false
	}
	for _, n := range cells {
		if !g.IsTeaching(n) {
			return cells, false
		}
	}
	return cells, true
}

package stats

import (
	"sort"

	"github.com/kebiao/kebiao/pkg/model"
)

// RoomStat 教室利用率
type RoomStat struct {
	RoomID      string         `json:"room_id"`
	RoomName    string         `json:"room_name"`
	Type        model.RoomType `json:"type"`
	Occupied    int            `json:"occupied"`    // 占用节数
	Available   int            `json:"available"`   // 一周可用节数
	Utilization float64        `json:"utilization"` // %
}

// RoomUtilization 统计每间教室一周的占用率
// 可用节数 = 工作日数 × 上课节次数
func RoomUtilization(entries []*model.TimetableEntry, cfg model.Config) []RoomStat {
	teaching := 0
	for _, s := range cfg.Slots {
		if s.IsTeaching() {
			teaching++
		}
	}
	available := cfg.WorkingDays * teaching

	occupied := make(map[string]int)
	for _, e := range entries {
		occupied[e.RoomID] += e.Length()
	}

	out := make([]RoomStat, 0, len(cfg.Rooms))
	for _, r := range cfg.Rooms {
		stat := RoomStat{
			RoomID:    r.ID,
			RoomName:  r.Name,
			Type:      r.Type,
			Occupied:  occupied[r.ID],
			Available: available,
		}
		if available > 0 {
			stat.Utilization = float64(stat.Occupied) / float64(available) * 100
		}
		out = append(out, stat)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Utilization > out[j].Utilization
	})
	return out
}

// Package stats 提供课表统计分析功能
package stats

import (
	"math"
	"sort"

	"github.com/kebiao/kebiao/pkg/model"
)

// WorkloadMetrics 教师课时指标
type WorkloadMetrics struct {
	TeacherStats   []TeacherStat `json:"teacher_stats"`
	TotalSlots     int           `json:"total_slots"`     // 全部条目占用节数
	AvgLoad        float64       `json:"avg_load"`        // 人均周课时
	StdDev         float64       `json:"std_dev"`         // 课时标准差
	LoadGini       float64       `json:"load_gini"`       // 课时基尼系数 (0=完全均衡)
	OverloadedRate float64       `json:"overloaded_rate"` // 超限教师占比 (%)
	RelaxedCount   int           `json:"relaxed_count"`   // 已放宽上限的教师数
}

// TeacherStat 单个教师统计
type TeacherStat struct {
	TeacherID   string  `json:"teacher_id"`
	TeacherName string  `json:"teacher_name"`
	Load        int     `json:"load"`
	MaxLoad     int     `json:"max_load"`             // 0 表示不限
	Utilization float64 `json:"utilization,omitempty"` // Load / MaxLoad (%)
	Overload    int     `json:"overload"`
	Entries     int     `json:"entries"`
	LabSlots    int     `json:"lab_slots"`
	Relaxed     bool    `json:"relaxed"`
}

// WorkloadAnalyzer 课时分析器
type WorkloadAnalyzer struct{}

// NewWorkloadAnalyzer 创建课时分析器
func NewWorkloadAnalyzer() *WorkloadAnalyzer {
	return &WorkloadAnalyzer{}
}

// Analyze 统计教师周课时，没有课的教师也会列出
func (a *WorkloadAnalyzer) Analyze(entries []*model.TimetableEntry, teachers []model.Teacher) *WorkloadMetrics {
	byID := make(map[string]*TeacherStat, len(teachers))
	for _, t := range teachers {
		byID[t.ID] = &TeacherStat{TeacherID: t.ID, TeacherName: t.Name, MaxLoad: t.MaxLoad}
	}

	metrics := &WorkloadMetrics{TeacherStats: make([]TeacherStat, 0)}
	for _, e := range entries {
		stat := byID[e.TeacherID]
		if stat == nil {
			stat = &TeacherStat{TeacherID: e.TeacherID, TeacherName: e.TeacherID}
			byID[e.TeacherID] = stat
		}
		stat.Load += e.Length()
		stat.Entries++
		if e.IsLabSession {
			stat.LabSlots += e.Length()
		}
		if e.HasOverride(model.RuleWorkload) {
			stat.Relaxed = true
		}
		metrics.TotalSlots += e.Length()
	}

	loads := make([]float64, 0, len(byID))
	overloaded := 0
	for _, stat := range byID {
		if stat.MaxLoad > 0 {
			stat.Utilization = float64(stat.Load) / float64(stat.MaxLoad) * 100
			if stat.Load > stat.MaxLoad {
				stat.Overload = stat.Load - stat.MaxLoad
				overloaded++
			}
		}
		if stat.Relaxed {
			metrics.RelaxedCount++
		}
		loads = append(loads, float64(stat.Load))
		metrics.TeacherStats = append(metrics.TeacherStats, *stat)
	}

	sort.Slice(metrics.TeacherStats, func(i, j int) bool {
		if metrics.TeacherStats[i].Load != metrics.TeacherStats[j].Load {
			return metrics.TeacherStats[i].Load > metrics.TeacherStats[j].Load
		}
		return metrics.TeacherStats[i].TeacherID < metrics.TeacherStats[j].TeacherID
	})

	if len(loads) == 0 {
		return metrics
	}
	metrics.AvgLoad = mean(loads)
	metrics.StdDev = math.Sqrt(variance(loads, metrics.AvgLoad))
	metrics.LoadGini = gini(loads)
	metrics.OverloadedRate = float64(overloaded) / float64(len(loads)) * 100
	return metrics
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return sum / float64(len(values))
}

// gini 基尼系数
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	g := 0.0
	for i, v := range sorted {
		g += (2*float64(i+1) - float64(n) - 1) * v
	}
	g = g / (float64(n) * sum)
	return math.Max(0, math.Min(1, g))
}

// Package solver 提供排课求解器
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/model"
	"github.com/kebiao/kebiao/pkg/scheduler/constraint"
)

// Solver 求解器接口
type Solver interface {
	// Solve 生成课表
	Solve(ctx context.Context, schedCtx *constraint.Context) (*Result, error)

	// Name 返回求解器名称
	Name() string
}

// Unplaced 无法安排的单元
type Unplaced struct {
	DivisionID string      `json:"division_id"`
	Year       string      `json:"year"`
	SubjectID  string      `json:"subject_id"`
	Batch      model.Batch `json:"batch"`
	Unit       int         `json:"unit"` // 该课程需求中的单元序号
	Length     int         `json:"length"`
	Contiguous bool        `json:"contiguous"`
	TeacherIDs []string    `json:"teacher_ids"`
	Reason     string      `json:"reason"`
}

// Key 单元的稳定标识
func (u *Unplaced) Key() string {
	return fmt.Sprintf("%s/%s/%s#%d", u.DivisionID, u.SubjectID, u.Batch, u.Unit)
}

// Err 单元无法安排的错误
func (u *Unplaced) Err() *errors.AppError {
	return errors.Unplaceable(u.Key(), u.Reason)
}

// Request 转换为放置请求
func (u *Unplaced) Request() Request {
	return Request{
		DivisionID: u.DivisionID,
		Year:       u.Year,
		SubjectID:  u.SubjectID,
		Batch:      u.Batch,
		Length:     u.Length,
		TeacherIDs: u.TeacherIDs,
	}
}

// Result 求解结果
type Result struct {
	Entries    []*model.TimetableEntry `json:"entries"`
	Unplaced   []Unplaced              `json:"unplaced"`
	Statistics *Statistics             `json:"statistics"`
	Duration   time.Duration           `json:"duration"`
	Success    bool                    `json:"success"`
	Message    string                  `json:"message,omitempty"`
}

// Statistics 排课统计
type Statistics struct {
	Divisions     int     `json:"divisions"`
	Sessions      int     `json:"sessions"`
	TotalUnits    int     `json:"total_units"`
	PlacedUnits   int     `json:"placed_units"`
	RequiredSlots int     `json:"required_slots"`
	PlacedSlots   int     `json:"placed_slots"`
	FillRate      float64 `json:"fill_rate"`
}

// GreedySolver 贪心求解器：确定顺序、不回溯
type GreedySolver struct {
	placer *Placer
	logger *logger.SchedulerLogger
}

// NewGreedySolver 创建贪心求解器
func NewGreedySolver(cm *constraint.Manager) *GreedySolver {
	return &GreedySolver{
		placer: NewPlacer(cm),
		logger: logger.NewSchedulerLogger(),
	}
}

// Name 返回求解器名称
func (s *GreedySolver) Name() string {
	return "GreedySolver"
}

// Placer 返回单元放置器
func (s *GreedySolver) Placer() *Placer {
	return s.placer
}

// Solve 按 班级 -> 课程需求 -> 单元 顺序贪心排课
// 新条目直接写入 schedCtx 的占用索引，供后续班级检查教师和教室冲突
func (s *GreedySolver) Solve(ctx context.Context, schedCtx *constraint.Context) (*Result, error) {
	startTime := time.Now()
	result := &Result{
		Entries:    make([]*model.TimetableEntry, 0),
		Unplaced:   make([]Unplaced, 0),
		Statistics: &Statistics{},
	}
	stats := result.Statistics

	for _, div := range schedCtx.Model.Divisions() {
		if !schedCtx.IsTarget(div.ID) {
			continue
		}
		stats.Divisions++

		for _, session := range schedCtx.Model.RequiredSessions(div.ID) {
			stats.Sessions++
			for i, length := range session.Units() {
				if err := ctx.Err(); err != nil {
					return result, err
				}
				stats.TotalUnits++
				stats.RequiredSlots += length

				req := Request{
					DivisionID: session.DivisionID,
					Year:       session.Year,
					SubjectID:  session.Subject.ID,
					Batch:      session.Batch,
					Length:     length,
					TeacherIDs: session.TeacherIDs,
				}
				entry, reason := s.placer.Place(schedCtx, req, PlaceOptions{})
				if entry == nil {
					u := Unplaced{
						DivisionID: session.DivisionID,
						Year:       session.Year,
						SubjectID:  session.Subject.ID,
						Batch:      session.Batch,
						Unit:       i,
						Length:     length,
						Contiguous: session.Contiguous && length > 1,
						TeacherIDs: session.TeacherIDs,
						Reason:     reason,
					}
					result.Unplaced = append(result.Unplaced, u)
					s.logger.SessionUnplaceable(session.DivisionID, session.Subject.ID, string(session.Batch), u.Err())
					continue
				}

				schedCtx.AddEntry(entry)
				result.Entries = append(result.Entries, entry)
				stats.PlacedUnits++
				stats.PlacedSlots += length
			}
		}
	}

	if stats.RequiredSlots > 0 {
		stats.FillRate = float64(stats.PlacedSlots) / float64(stats.RequiredSlots) * 100
	}
	result.Duration = time.Since(startTime)
	result.Success = len(result.Unplaced) == 0
	if result.Success {
		result.Message = "全部课时已安排"
	} else {
		result.Message = fmt.Sprintf("%d 个单元无法安排", len(result.Unplaced))
	}
	return result, nil
}

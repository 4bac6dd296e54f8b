package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kebiao/kebiao/internal/database"
	"github.com/kebiao/kebiao/pkg/model"
)

// RestrictionRepository 预约限制仓储
type RestrictionRepository struct {
	db *database.DB
}

// NewRestrictionRepository 创建预约限制仓储
func NewRestrictionRepository(db *database.DB) *RestrictionRepository {
	return &RestrictionRepository{db: db}
}

type restrictionRow struct {
	ID        uuid.UUID      `db:"id"`
	Scope     string         `db:"scope"`
	Years     pq.StringArray `db:"years"`
	Slots     pq.Int64Array  `db:"slots"`
	Days      pq.Int64Array  `db:"days"`
	Priority  int            `db:"priority"`
	Reason    string         `db:"reason"`
	Seq       int64          `db:"seq"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (row restrictionRow) toModel() *model.Restriction {
	return &model.Restriction{
		BaseModel: model.BaseModel{ID: row.ID, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt},
		Scope:     model.RestrictionScope(row.Scope),
		Years:     []string(row.Years),
		Slots:     toInts(row.Slots),
		Days:      toInts(row.Days),
		Priority:  row.Priority,
		Reason:    row.Reason,
		Seq:       row.Seq,
	}
}

func toInts(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

// Create 保存限制
func (r *RestrictionRepository) Create(ctx context.Context, res *model.Restriction) error {
	const query = `INSERT INTO restrictions (id, scope, years, slots, days, priority, reason, seq, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	err := exec(ctx, r.db, query,
		res.ID, string(res.Scope), pq.Array(res.Years), pq.Array(res.Slots), pq.Array(res.Days),
		res.Priority, res.Reason, res.Seq, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("保存预约限制失败: %w", err)
	}
	return nil
}

// List 按注册顺序返回全部限制
func (r *RestrictionRepository) List(ctx context.Context) ([]*model.Restriction, error) {
	const query = `SELECT id, scope, years, slots, days, priority, reason, seq, created_at, updated_at FROM restrictions ORDER BY seq, created_at`
	var rows []restrictionRow
	err := timed(query, func() error {
		return r.db.SelectContext(ctx, &rows, query)
	})
	if err != nil {
		return nil, fmt.Errorf("查询预约限制失败: %w", err)
	}
	out := make([]*model.Restriction, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

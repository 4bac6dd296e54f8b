package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kebiao/kebiao/internal/database"
	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
)

const (
	timetableColumns = `id, year, division_id, batch, run_id, version, is_active, generated_at, created_at, updated_at`
	entryColumns     = `id, timetable_id, year, division_id, day, time_slot, subject_id, teacher_id, room_id, room_type, batch, is_lab_session, duration, overrides, position`
)

// TimetableRepository 课表仓储
// 每个范围 (年级, 班级, 分组) 保留全部版本，同一时刻只有一个版本生效
type TimetableRepository struct {
	db *database.DB
}

// NewTimetableRepository 创建课表仓储
func NewTimetableRepository(db *database.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// SaveGeneration 在同一事务中停用旧版本并插入、激活新版本
func (r *TimetableRepository) SaveGeneration(ctx context.Context, tables []*model.Timetable) error {
	versions := make([]int, len(tables))
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for i, t := range tables {
			next, err := r.nextVersion(ctx, tx, t.Scope)
			if err != nil {
				return err
			}
			versions[i] = next

			const deactivate = `UPDATE timetables SET is_active = FALSE, updated_at = $4 WHERE year = $1 AND division_id = $2 AND batch = $3 AND is_active`
			if err := exec(ctx, tx, deactivate, t.Year, t.DivisionID, t.Batch, time.Now()); err != nil {
				return fmt.Errorf("停用课表 %s 失败: %w", t.Scope.Key(), err)
			}

			row := *t
			row.Version = next
			row.IsActive = true
			if err := r.insert(ctx, tx, &row); err != nil {
				return err
			}
			if err := r.insertEntries(ctx, tx, t.ID, t.Entries); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, t := range tables {
		t.Version = versions[i]
		t.IsActive = true
	}
	return nil
}

func (r *TimetableRepository) nextVersion(ctx context.Context, q queryer, scope model.Scope) (int, error) {
	const query = `SELECT COALESCE(MAX(version), 0) + 1 FROM timetables WHERE year = $1 AND division_id = $2 AND batch = $3`
	var next int
	err := timed(query, func() error {
		return sqlx.GetContext(ctx, q, &next, query, scope.Year, scope.DivisionID, scope.Batch)
	})
	if err != nil {
		return 0, fmt.Errorf("查询课表版本失败: %w", err)
	}
	return next, nil
}

func (r *TimetableRepository) insert(ctx context.Context, q queryer, t *model.Timetable) error {
	const query = `INSERT INTO timetables (` + timetableColumns + `)
		VALUES (:id, :year, :division_id, :batch, :run_id, :version, :is_active, :generated_at, :created_at, :updated_at)`
	err := timed(query, func() error {
		_, err := sqlx.NamedExecContext(ctx, q, query, t)
		return err
	})
	if err != nil {
		return fmt.Errorf("插入课表 %s 失败: %w", t.Scope.Key(), err)
	}
	return nil
}

func (r *TimetableRepository) insertEntries(ctx context.Context, q queryer, timetableID uuid.UUID, entries []model.TimetableEntry) error {
	const query = `INSERT INTO timetable_entries (` + entryColumns + `)
		VALUES (:id, :timetable_id, :year, :division_id, :day, :time_slot, :subject_id, :teacher_id, :room_id, :room_type, :batch, :is_lab_session, :duration, :overrides, :position)`
	for i := range entries {
		e := entries[i]
		e.TimetableID = timetableID
		e.Position = i
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		err := timed(query, func() error {
			_, err := sqlx.NamedExecContext(ctx, q, query, &e)
			return err
		})
		if err != nil {
			return fmt.Errorf("插入课表条目失败: %w", err)
		}
	}
	return nil
}

// ListActive 返回所有生效课表及其条目
func (r *TimetableRepository) ListActive(ctx context.Context) ([]*model.Timetable, error) {
	const query = `SELECT ` + timetableColumns + ` FROM timetables WHERE is_active ORDER BY year, division_id, batch`
	var tables []*model.Timetable
	err := timed(query, func() error {
		return r.db.SelectContext(ctx, &tables, query)
	})
	if err != nil {
		return nil, fmt.Errorf("查询生效课表失败: %w", err)
	}
	if len(tables) == 0 {
		return tables, nil
	}

	ids := make([]string, len(tables))
	byID := make(map[uuid.UUID]*model.Timetable, len(tables))
	for i, t := range tables {
		ids[i] = t.ID.String()
		t.Entries = make([]model.TimetableEntry, 0)
		byID[t.ID] = t
	}

	const entriesQuery = `SELECT ` + entryColumns + ` FROM timetable_entries WHERE timetable_id = ANY($1) ORDER BY timetable_id, position, id`
	var entries []model.TimetableEntry
	err = timed(entriesQuery, func() error {
		return r.db.SelectContext(ctx, &entries, entriesQuery, pq.Array(ids))
	})
	if err != nil {
		return nil, fmt.Errorf("查询课表条目失败: %w", err)
	}
	for _, e := range entries {
		if t := byID[e.TimetableID]; t != nil {
			t.Entries = append(t.Entries, e)
		}
	}
	return tables, nil
}

// ReplaceEntries 替换生效课表的全部条目
func (r *TimetableRepository) ReplaceEntries(ctx context.Context, timetableID uuid.UUID, entries []model.TimetableEntry) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		const lock = `SELECT is_active FROM timetables WHERE id = $1 FOR UPDATE`
		var active bool
		err := timed(lock, func() error {
			return sqlx.GetContext(ctx, tx, &active, lock, timetableID)
		})
		if stderrors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
			return errors.NotFound("timetable", timetableID.String())
		}
		if err != nil {
			return fmt.Errorf("查询课表失败: %w", err)
		}

		if err := exec(ctx, tx, `DELETE FROM timetable_entries WHERE timetable_id = $1`, timetableID); err != nil {
			return fmt.Errorf("删除课表条目失败: %w", err)
		}
		if err := r.insertEntries(ctx, tx, timetableID, entries); err != nil {
			return err
		}
		return exec(ctx, tx, `UPDATE timetables SET updated_at = $2 WHERE id = $1`, timetableID, time.Now())
	})
}

package scheduler

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
)

// Store 课表存储
type Store interface {
	// SaveGeneration 保存新一版课表并激活，同一事务内停用各范围之前的生效版本
	SaveGeneration(ctx context.Context, tables []*model.Timetable) error

	// ListActive 返回所有生效课表（含条目）
	ListActive(ctx context.Context) ([]*model.Timetable, error)

	// ReplaceEntries 替换生效课表的条目，课表已不再生效时返回 NOT_FOUND
	ReplaceEntries(ctx context.Context, timetableID uuid.UUID, entries []model.TimetableEntry) error
}

// MemoryStore 内存存储，未配置数据库时使用
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]*model.Timetable // scope key -> 各版本
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]*model.Timetable)}
}

// SaveGeneration 保存并激活
func (s *MemoryStore) SaveGeneration(ctx context.Context, tables []*model.Timetable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tables {
		versions := s.tables[t.Scope.Key()]
		next := 1
		for _, v := range versions {
			if v.Version >= next {
				next = v.Version + 1
			}
			v.IsActive = false
		}
		c := t.Clone()
		c.Version = next
		c.IsActive = true
		t.Version = next
		t.IsActive = true
		s.tables[t.Scope.Key()] = append(versions, c)
	}
	return nil
}

// ListActive 返回生效课表副本，按范围排序
func (s *MemoryStore) ListActive(_ context.Context) ([]*model.Timetable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Timetable, 0, len(s.tables))
	for _, versions := range s.tables {
		for _, v := range versions {
			if v.IsActive {
				out = append(out, v.Clone())
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope.Less(out[j].Scope) })
	return out, nil
}

// ReplaceEntries 替换条目
func (s *MemoryStore) ReplaceEntries(_ context.Context, timetableID uuid.UUID, entries []model.TimetableEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, versions := range s.tables {
		for _, v := range versions {
			if v.ID == timetableID && v.IsActive {
				v.Entries = append([]model.TimetableEntry(nil), entries...)
				return nil
			}
		}
	}
	return errors.NotFound("timetable", timetableID.String())
}

// Versions 返回某范围的全部版本
func (s *MemoryStore) Versions(scope model.Scope) []*model.Timetable {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Timetable, 0)
	for _, v := range s.tables[scope.Key()] {
		out = append(out, v.Clone())
	}
	return out
}

package restriction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/model"
)

func globalBooking(priority int, slots []int, days []int) *model.Restriction {
	return &model.Restriction{BaseModel: model.NewBaseModel(), Scope: model.ScopeGlobal, Slots: slots, Days: days, Priority: priority, Reason: "集会"}
}

func yearBooking(priority int, years []string, slots []int, days []int) *model.Restriction {
	return &model.Restriction{BaseModel: model.NewBaseModel(), Scope: model.ScopeYear, Years: years, Slots: slots, Days: days, Priority: priority}
}

func TestRegistryIsBlocked(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(globalBooking(1, []int{1}, []int{model.DayAll})))
	require.NoError(t, reg.Register(yearBooking(1, []string{"SY"}, []int{5}, []int{3})))

	assert.True(t, reg.IsBlocked(1, 4, "FY"))
	assert.True(t, reg.IsBlocked(5, 3, "SY"))
	assert.False(t, reg.IsBlocked(5, 3, "FY"))
	assert.False(t, reg.IsBlocked(2, 1, "SY"))
	assert.Nil(t, reg.BlockingBooking(6, 1, "TY"))
}

func TestRegistryBlockingBookingPrecedence(t *testing.T) {
	reg := NewRegistry()
	yearHigh := yearBooking(9, []string{"FY"}, []int{2}, []int{1})
	global := globalBooking(1, []int{2, 3}, []int{1})
	require.NoError(t, reg.Register(yearHigh))
	require.NoError(t, reg.Register(global))

	got := reg.BlockingBooking(2, 1, "FY")
	require.NotNil(t, got)
	assert.Equal(t, global.ID, got.ID, "global scope wins over a higher-priority year booking")

	yearLow := yearBooking(2, []string{"FY"}, []int{4}, []int{1})
	yearTop := yearBooking(5, []string{"FY"}, []int{4}, []int{1})
	require.NoError(t, reg.Register(yearLow))
	require.NoError(t, reg.Register(yearTop))
	assert.Equal(t, yearTop.ID, reg.BlockingBooking(4, 1, "FY").ID)

	older := yearBooking(3, []string{"FY"}, []int{6}, []int{2})
	newer := yearBooking(3, []string{"FY"}, []int{6}, []int{2})
	require.NoError(t, reg.Register(older))
	require.NoError(t, reg.Register(newer))
	assert.Equal(t, newer.ID, reg.BlockingBooking(6, 2, "FY").ID, "ties break by most recently created")
}

func TestRegistryBlockingBookingPrefersLatestCreatedAt(t *testing.T) {
	now := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)

	latest := yearBooking(5, []string{"FY"}, []int{2}, []int{3})
	latest.CreatedAt = now
	earlier := yearBooking(5, []string{"FY"}, []int{2}, []int{3})
	earlier.CreatedAt = now.Add(-time.Hour)

	reg := NewRegistry()
	require.NoError(t, reg.Register(latest))
	require.NoError(t, reg.Register(earlier))

	assert.Equal(t, latest.ID, reg.BlockingBooking(2, 3, "FY").ID, "创建时间优先于注册顺序")

	same := yearBooking(5, []string{"FY"}, []int{2}, []int{3})
	same.CreatedAt = now
	require.NoError(t, reg.Register(same))
	assert.Equal(t, same.ID, reg.BlockingBooking(2, 3, "FY").ID, "创建时间相同时取后注册的")
}

func TestRegistryRejectsDuplicateGlobal(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(globalBooking(5, []int{1, 2}, []int{model.DayAll})))

	tests := []struct {
		name    string
		res     *model.Restriction
		wantErr bool
	}{
		{"相同集合相同优先级", globalBooking(5, []int{2, 1}, []int{model.DayAll}), true},
		{"相同集合较低优先级", yearBooking(3, []string{"FY"}, []int{1, 2}, []int{model.DayAll}), true},
		{"相同集合更高优先级", globalBooking(6, []int{1, 2}, []int{model.DayAll}), false},
		{"不同集合", globalBooking(1, []int{1}, []int{model.DayAll}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.res)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.CodeRestrictionConflict))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRegistryValidate(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(&model.Restriction{Scope: model.ScopeYear, Slots: []int{1}, Days: []int{1}})
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidationFail, errors.GetCode(err))

	err = reg.Register(&model.Restriction{Scope: "weekly", Slots: []int{1}, Days: []int{9}})
	require.Error(t, err)
	assert.Zero(t, reg.Count())
}

func TestRegistrySnapshotIsolated(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(globalBooking(1, []int{1}, []int{1})))
	snap := reg.Snapshot()

	require.NoError(t, reg.Register(globalBooking(1, []int{2}, []int{1})))

	assert.True(t, snap.IsBlocked(1, 1, "FY"))
	assert.False(t, snap.IsBlocked(2, 1, "FY"), "snapshot must not observe later registrations")
	assert.True(t, reg.IsBlocked(2, 1, "FY"))
}

func TestRegistryLoadKeepsCreationOrder(t *testing.T) {
	first := yearBooking(1, []string{"FY"}, []int{3}, []int{1})
	first.Seq = 7
	second := yearBooking(1, []string{"FY"}, []int{3}, []int{1})
	second.Seq = 9

	reg := NewRegistry()
	reg.Load([]*model.Restriction{second, first})

	assert.Equal(t, second.ID, reg.BlockingBooking(3, 1, "FY").ID)

	third := yearBooking(1, []string{"FY"}, []int{3}, []int{1})
	require.NoError(t, reg.Register(third))
	assert.Equal(t, int64(10), third.Seq)
	assert.Equal(t, third.ID, reg.BlockingBooking(3, 1, "FY").ID)
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry()
	b := globalBooking(1, []int{1}, []int{1})
	require.NoError(t, reg.Register(b))

	assert.True(t, reg.Remove(b.ID))
	assert.False(t, reg.Remove(b.ID))
	assert.False(t, reg.IsBlocked(1, 1, "FY"))
}

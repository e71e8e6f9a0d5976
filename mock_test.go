package phasez

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockBidder is a hook whose phase calls are asserted with testify/mock.
type mockBidder struct {
	mock.Mock
}

func (m *mockBidder) BeforeInit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBidder) AllUnitsCreated(ctx context.Context, units []string) error {
	return m.Called(ctx, units).Error(0)
}

func (m *mockBidder) BeforeTrigger(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestRunnerFullCycleWithMock(t *testing.T) {
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "page")

	bidder := &mockBidder{}
	bidder.On("BeforeInit", ctx).Return(nil).Once()
	bidder.On("AllUnitsCreated", ctx, []string{"top", "side"}).Return(nil).Once()
	bidder.On("BeforeTrigger", ctx).Return(errBoom).Once()

	r := newRunner(t, []any{bidder})

	r.RunBeforeInit(ctx)
	r.RunBeforeTeardown(ctx)
	r.RunExternalKeyValues(ctx, nil)
	r.RunUnitCreated("top")
	r.RunAllUnitsCreated(ctx, []string{"top", "side"})
	r.RunBeforeTrigger(ctx)

	bidder.AssertExpectations(t)
	bidder.AssertNotCalled(t, "BeforeTeardown", mock.Anything)

	ids := r.Stats().IDs()
	require.Len(t, ids, 3)
	assert.Equal(t, "mockBidder.BeforeInit", ids[0])
	assert.Equal(t, int64(3), r.Metrics().PhaseRuns)
}

package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func statusPtr(s Status) *Status { return &s }
func strPtr(s string) *string    { return &s }

func TestNormalize(t *testing.T) {
	tests := []struct {
		observed string
		want     Status
	}{
		{"CREATED", StatusCanceled},
		{"PAID", StatusPaid},
		{"CANCELED", StatusCanceled},
		{"TIMEOUTED", StatusTimeouted},
		{"AUTHORIZED", Status("AUTHORIZED")},
	}

	for _, tt := range tests {
		t.Run(tt.observed, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.observed))
		})
	}
}

func TestReconcile(t *testing.T) {
	t.Run("Unset_CreatedBecomesCanceled", func(t *testing.T) {
		assert.Equal(t, StatusCanceled, Reconcile(nil, "CREATED"))
	})

	t.Run("Created_MovesToPaid", func(t *testing.T) {
		assert.Equal(t, StatusPaid, Reconcile(statusPtr(StatusCreated), "PAID"))
	})

	t.Run("Paid_NeverRegresses", func(t *testing.T) {
		for _, observed := range []string{"CREATED", "CANCELED", "TIMEOUTED", "PAID"} {
			assert.Equal(t, StatusPaid, Reconcile(statusPtr(StatusPaid), observed), observed)
		}
	})

	t.Run("Canceled_StaysCanceled", func(t *testing.T) {
		assert.Equal(t, StatusCanceled, Reconcile(statusPtr(StatusCanceled), "PAID"))
	})

	t.Run("NonTerminalUnknown_Replaced", func(t *testing.T) {
		assert.Equal(t, StatusPaid, Reconcile(statusPtr("AUTHORIZED"), "PAID"))
	})
}

func TestProject(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want LifecycleStatus
	}{
		{"NothingSet", Record{}, LifecycleNew},
		{"CreatedWithOrder", Record{GoPayStatus: statusPtr(StatusCreated), OrderID: strPtr("ORD-1")}, LifecycleNew},
		{"CreatedWithoutOrder", Record{GoPayStatus: statusPtr(StatusCreated)}, LifecycleNew},
		{"Paid", Record{GoPayStatus: statusPtr(StatusPaid)}, LifecycleCaptured},
		{"Canceled", Record{GoPayStatus: statusPtr(StatusCanceled)}, LifecycleCanceled},
		{"Timeouted", Record{GoPayStatus: statusPtr(StatusTimeouted)}, LifecycleCanceled},
		{"Bogus", Record{GoPayStatus: statusPtr("BOGUS")}, LifecycleUnknown},
		{"OrderWithoutStatus", Record{OrderID: strPtr("ORD-1")}, LifecycleUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Project(tt.rec))
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusPaid.Terminal())
	assert.True(t, StatusCanceled.Terminal())
	assert.True(t, StatusTimeouted.Terminal())
	assert.False(t, StatusCreated.Terminal())
	assert.False(t, Status("REFUNDED").Terminal())
}

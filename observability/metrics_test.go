package observability

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"quickex/core/events"
)

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	before := testutil.ToFloat64(m.requests.WithLabelValues("quickex_withdraw", "error"))
	m.Observe("quickex_withdraw", 304, 5*time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(m.requests.WithLabelValues("quickex_withdraw", "error")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues("quickex_withdraw", "304")))

	m.RecordAuthRejection("replay")
	require.Equal(t, float64(1), testutil.ToFloat64(m.auth.WithLabelValues("replay")))
}

func TestEventMetricsCountsTransitions(t *testing.T) {
	m := Events()
	m.Emit(events.QuickexDeposit{Token: "qxt", Amount: big.NewInt(1)})
	m.Emit(events.QuickexDeposit{Token: "QXT", Amount: big.NewInt(2)})
	require.Equal(t, float64(2), testutil.ToFloat64(m.transitions.WithLabelValues(events.TypeQuickexDeposit, "QXT")))
}

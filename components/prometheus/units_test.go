package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/logger"

	nsregistry "github.com/dueldanov/nodescript/internal/registry"
)

func TestUnitMetrics(t *testing.T) {
	loader := nsregistry.NewMapLoader()
	loader.Add("rates", "1", "Rates:\n  rate =? 0.1\nPremium: Rates\n  fee = rate * 2\n")
	loader.Add("orders", "", "Order:\n  qty =? 1\n")

	log := logger.NewNopLogger()
	units := nsregistry.New(log, loader, nil)
	require.NoError(t, units.Preload(nsregistry.Ref{Name: "rates"}, nsregistry.Ref{Name: "orders"}))

	deps.UnitRegistry = units
	ParamsPrometheus.UnitMetrics = true
	require.NoError(t, configure())

	collect()
	require.Equal(t, 1.0, testutil.ToFloat64(unitsLoaded.WithLabelValues("1")))
	require.Equal(t, 1.0, testutil.ToFloat64(unitsLoaded.WithLabelValues("")))
	require.Equal(t, 2.0, testutil.ToFloat64(unitNodes.WithLabelValues("rates")))

	rec := httptest.NewRecorder()
	handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `nodescript_registry_unit_nodes{unit="orders"} 1`)

	units.Reset()
	collect()
	require.Equal(t, 0, testutil.CollectAndCount(unitNodes))
}

package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentHandlerUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(mux.MiddlewareFunc(InstrumentHandler))
	r.HandleFunc("/posts/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	// Many ids, one route: the histogram must collapse them into a single
	// template label instead of growing a series per id.
	for _, id := range []string{"a1", "b2", "c3"} {
		req := httptest.NewRequest(http.MethodGet, "/posts/"+id, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	routes := requestDurationRoutes(t)
	assert.Contains(t, routes, "/posts/{id}")
	assert.NotContains(t, routes, "/posts/a1")
	assert.NotContains(t, routes, "/posts/b2")
}

func requestDurationRoutes(t *testing.T) []string {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	var routes []string
	for _, mf := range families {
		if mf.GetName() != "http_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "route" {
					routes = append(routes, lp.GetValue())
				}
			}
		}
	}
	return routes
}

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"station_chat_server/pkg/errorx"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "invalid", Outcome(errorx.New(errorx.CodeInvalidParam, "x")))
	assert.Equal(t, "forbidden", Outcome(errorx.ErrForbidden))
	assert.Equal(t, "not_found", Outcome(errorx.New(errorx.CodeNotFound, "x")))
	assert.Equal(t, "conflict", Outcome(errorx.New(errorx.CodeConflict, "x")))
	assert.Equal(t, "error", Outcome(errors.New("x")))
}

func TestObserveLifecycle(t *testing.T) {
	before := testutil.ToFloat64(LifecycleOps.WithLabelValues("open", "ok"))
	ObserveLifecycle("open", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(LifecycleOps.WithLabelValues("open", "ok")))

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "station_session_lifecycle_total"))
}

package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func probe(h http.HandlerFunc) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestProbes(t *testing.T) {
	assert.Equal(t, http.StatusOK, probe(Healthz).Code)

	SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, probe(Readyz).Code)

	SetReady(true)
	defer SetReady(false)
	rec := probe(Readyz)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}

func TestFailingChecks(t *testing.T) {
	SetReady(true)
	defer SetReady(false)

	var outboxErr error
	Register("outbox", func() error { return outboxErr })
	Register("book", func() error { return nil })
	defer Unregister("outbox")
	defer Unregister("book")

	assert.Equal(t, http.StatusOK, probe(Readyz).Code)

	outboxErr = errors.New("closed")
	rec := probe(Readyz)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "outbox: closed")
	assert.Equal(t, []string{"outbox: closed"}, Failing())
}

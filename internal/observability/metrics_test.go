package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()

	m.RecordAuth("login", "success")
	m.RecordAuth("login", "success")
	m.RecordAuth("login", "locked")
	m.RecordLockout()
	m.RecordInvitation("created")
	m.RecordRequest("/auth/login", "POST", 200, 15*time.Millisecond)
	m.RecordError("/auth/login", "POST", "UNAUTHORIZED")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("login", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("login", "locked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invitations.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "/auth/login", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("POST", "/auth/login", "UNAUTHORIZED")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAuth("login", "success")
		m.RecordLockout()
		m.RecordInvitation("created")
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
	})
	assert.Nil(t, m.Registry())
}

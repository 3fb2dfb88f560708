package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/carauth"
)

type fakeSource struct {
	snapshot     carauth.MetricsSnapshot
	auditDropped uint64
	emailDropped uint64
}

func (f fakeSource) MetricsSnapshot() carauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.auditDropped }
func (f fakeSource) EmailDropped() uint64                     { return f.emailDropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: carauth.MetricsSnapshot{
			Counters:   map[carauth.MetricID]uint64{},
			Histograms: map[carauth.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersHistogramAndDrops(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: carauth.MetricsSnapshot{
			Counters: map[carauth.MetricID]uint64{
				carauth.MetricLoginSuccess:  7,
				carauth.MetricAccountLocked: 1,
			},
			Histograms: map[carauth.MetricID][]uint64{
				carauth.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		auditDropped: 2,
		emailDropped: 3,
	})

	out := exp.Render()
	for _, want := range []string{
		"carauth_login_success_total 7",
		"carauth_account_locked_total 1",
		"carauth_register_success_total 0",
		"carauth_validate_latency_seconds_bucket{le=\"0.00005\"} 1",
		"carauth_validate_latency_seconds_bucket{le=\"+Inf\"} 36",
		"carauth_validate_latency_seconds_count 36",
		"carauth_audit_dropped_total 2",
		"carauth_email_dropped_total 3",
		"# TYPE carauth_login_success_total counter",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: carauth.MetricsSnapshot{
			Counters:   map[carauth.MetricID]uint64{carauth.MetricLoginSuccess: 1},
			Histograms: map[carauth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: carauth.MetricsSnapshot{
			Counters: map[carauth.MetricID]uint64{
				carauth.MetricLoginSuccess:                1000,
				carauth.MetricLoginFailure:                40,
				carauth.MetricRegisterSuccess:             300,
				carauth.MetricEmailSent:                   310,
				carauth.MetricPasswordResetConfirmFailure: 3,
			},
			Histograms: map[carauth.MetricID][]uint64{
				carauth.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}

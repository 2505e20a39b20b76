package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue は指定名のカウンタ値を取得する。ラベル付きの場合は合計値を返す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		var sum float64
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
		return sum
	}

	t.Fatalf("metric %s not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordSubmission_IncrementsCounter は申込カウンタが増加することを検証する。
func TestRecordSubmission_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSubmission()
	c.RecordSubmission()

	if got := counterValue(t, reg, "endorse_submissions_total"); got != 2 {
		t.Errorf("submissions_total = %v, want 2", got)
	}
}

// TestRecordTransition_CountsPerAction はアクション別に遷移が記録されることを検証する。
func TestRecordTransition_CountsPerAction(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTransition("approve")
	c.RecordTransition("approve")
	c.RecordTransition("reject")

	if got := counterValue(t, reg, "endorse_transitions_total"); got != 3 {
		t.Errorf("transitions_total = %v, want 3", got)
	}
}

// TestRecordNotificationOutcomes は通知の成功と失敗が別カウンタに記録されることを検証する。
func TestRecordNotificationOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordVerification()
	c.RecordNotificationSent("verification")
	c.RecordNotificationFailure("approval")
	c.RecordTokensPurged(5)

	if got := counterValue(t, reg, "endorse_notifications_sent_total"); got != 1 {
		t.Errorf("notifications_sent_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "endorse_notifications_failed_total"); got != 1 {
		t.Errorf("notifications_failed_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "endorse_tokens_purged_total"); got != 5 {
		t.Errorf("tokens_purged_total = %v, want 5", got)
	}
}

// TestHandler_ServesPrometheusFormat は/metricsハンドラーがスクレイプ可能な
// テキストフォーマットを返すことを検証する。
func TestHandler_ServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSubmission()

	handler := Handler(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "endorse_submissions_total 1") {
		t.Errorf("expected submissions counter in scrape output, got:\n%s", body)
	}
}

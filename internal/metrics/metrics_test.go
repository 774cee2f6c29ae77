package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名のメトリクスファミリを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelValue はメトリクスから指定ラベルの値を返す。
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordSwapCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSwapCreated()
	c.RecordSwapCreated()

	mf := findMetric(t, reg, "skillswap_swap_requests_created_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("swap_requests_created_total = %v, want 2", val)
	}
}

// TestRecordSwapTransition_LabelsFromTo は遷移元と遷移先がラベルに記録されることを検証する。
func TestRecordSwapTransition_LabelsFromTo(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSwapTransition("pending", "accepted")
	c.RecordSwapTransition("accepted", "completed")
	c.RecordSwapTransition("pending", "accepted")

	mf := findMetric(t, reg, "skillswap_swap_transitions_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "from")+"->"+labelValue(m, "to")] = m.GetCounter().GetValue()
	}
	if got["pending->accepted"] != 2 || got["accepted->completed"] != 1 {
		t.Errorf("transitions = %v", got)
	}
}

func TestRecordFeedbackSubmitted_LabelsRating(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFeedbackSubmitted(5)

	mf := findMetric(t, reg, "skillswap_feedback_submitted_total")
	if len(mf.GetMetric()) != 1 || labelValue(mf.GetMetric()[0], "rating") != "5" {
		t.Errorf("unexpected feedback metric: %v", mf)
	}
}

func TestRecordRatingCacheLookup(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRatingCacheLookup(true)
	c.RecordRatingCacheLookup(false)
	c.RecordRatingCacheLookup(false)

	mf := findMetric(t, reg, "skillswap_rating_cache_lookups_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "result")] = m.GetCounter().GetValue()
	}
	if got["hit"] != 1 || got["miss"] != 2 {
		t.Errorf("rating cache lookups = %v", got)
	}
}

func TestRecordHTTPStatus_AndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(409)
	c.RecordRequestLatency(150 * time.Millisecond)

	mf := findMetric(t, reg, "skillswap_http_status_total")
	if labelValue(mf.GetMetric()[0], "status_code") != "409" {
		t.Errorf("status_code label = %q, want 409", labelValue(mf.GetMetric()[0], "status_code"))
	}

	hist := findMetric(t, reg, "skillswap_http_request_duration_seconds")
	if n := hist.GetMetric()[0].GetHistogram().GetSampleCount(); n != 1 {
		t.Errorf("latency sample count = %d, want 1", n)
	}
}

// 同じレジストリへの二重登録はpanicすることを検証する。
func TestNewCollector_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}

package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	end := time.Unix(1_760_000_000, 0)
	m.ObserveRun("payment-expiry", 250*time.Millisecond, nil, end)
	m.ObserveRun("payment-expiry", time.Second, errors.New("boom"), end.Add(time.Minute))
	m.ObserveCycle(CycleRan)
	m.ObserveCycle(CycleSkipped)
	m.ObserveCycle(CycleSkipped)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	runs := findMetricFamily(mfs, "cron_job_runs_total")
	if runs == nil {
		t.Fatalf("cron_job_runs_total missing")
	}
	outcomes := map[string]float64{}
	for _, metric := range runs.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "outcome" {
				outcomes[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	if outcomes["success"] != 1 || outcomes["failure"] != 1 {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}

	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", "payment-expiry"); err != nil || got != 1.25 {
		t.Fatalf("expected duration sum 1.25, got %f (%v)", got, err)
	}

	gauge := findMetricFamily(mfs, "cron_job_last_success_timestamp_seconds")
	if gauge == nil || gauge.GetMetric()[0].GetGauge().GetValue() != float64(end.Unix()) {
		t.Fatalf("last success should stay at the successful run")
	}

	if got, err := fetchCounterValue(mfs, "cron_cycles_total", "result", CycleSkipped); err != nil || got != 2 {
		t.Fatalf("expected skipped=2, got %f (%v)", got, err)
	}
}

func TestNilCronJobMetricsIsSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("job", time.Second, nil, time.Now())
	NewCronJobMetrics(nil).ObserveCycle(CycleRan)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestDeliveryMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewDeliveryMetrics(reg)
	metrics.ObserveAccept(AcceptOutcomeAccepted, 0)
	metrics.ObserveAccept(AcceptOutcomeConflict, 2)
	metrics.ObserveAccept(AcceptOutcomeConflict, 0)
	metrics.ObserveDelivered(false)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "delivery_accept_total", "outcome", AcceptOutcomeConflict); err != nil || got != 2 {
		t.Fatalf("expected conflict=2, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "delivery_completed_total", "ledger", "open"); err != nil || got != 1 {
		t.Fatalf("expected open=1, got %f (%v)", got, err)
	}
	retries := findMetricFamily(mfs, "delivery_accept_retries_total")
	if retries == nil || retries.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatalf("expected 2 retries")
	}
}

func TestNilDeliveryMetricsIsSafe(t *testing.T) {
	var metrics *DeliveryMetrics
	metrics.ObserveAccept(AcceptOutcomeAccepted, 1)
	NewDeliveryMetrics(nil).ObserveDelivered(true)
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("GET", "/api/order/{orderId}", 200, 10*time.Millisecond)
	m.Observe("GET", "", 404, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got, err := fetchCounterValue(mfs, "http_requests_total", "route", "/api/order/{orderId}")
	if err != nil {
		t.Fatalf("fetch counter: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected 1 request, got %v", got)
	}
	if got, err := fetchCounterValue(mfs, "http_requests_total", "route", "unmatched"); err != nil || got != 1 {
		t.Fatalf("expected unmatched route counted, got %v (%v)", got, err)
	}

	var nilMetrics *HTTPMetrics
	nilMetrics.Observe("GET", "/", 200, time.Millisecond)
}

package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON response for the metrics summary endpoint.
type Summary struct {
	Console  httpSummary    `json:"console"`
	Backend  backendSummary `json:"backend"`
	Sessions sessionInfo    `json:"sessions"`
	Logins   loginInfo      `json:"logins"`
	Server   serverInfo     `json:"server"`
}

type httpSummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
	P99Latency    float64 `json:"p99Latency"`
}

type backendSummary struct {
	TotalRequests  float64 `json:"totalRequests"`
	ErrorRate      float64 `json:"errorRate"`
	ActiveRequests float64 `json:"activeRequests"`
	P50Latency     float64 `json:"p50Latency"`
	P95Latency     float64 `json:"p95Latency"`
}

type sessionInfo struct {
	Restored    float64 `json:"restored"`
	Cached      float64 `json:"cached"`
	Invalidated float64 `json:"invalidated"`
	Anonymous   float64 `json:"anonymous"`
}

type loginInfo struct {
	Successes         float64 `json:"successes"`
	Failures          float64 `json:"failures"`
	RateLimited       float64 `json:"rateLimited"`
	Logouts           float64 `json:"logouts"`
	FailedRevocations float64 `json:"failedRevocations"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Exposition serves the registry in the Prometheus text format.
func (m *Metrics) Exposition() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Handler returns an http.HandlerFunc that serves a JSON summary of the live
// metrics.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := m.Summarize()
		if err != nil {
			http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store")
		_ = json.NewEncoder(w).Encode(summary)
	}
}

// Summarize gathers the registry into a Summary.
func (m *Metrics) Summarize() (Summary, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return Summary{}, err
	}

	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	restorations := fam["dktadmin_session_restorations_total"]
	logins := fam["dktadmin_logins_total"]
	logouts := fam["dktadmin_logouts_total"]
	start := gaugeValue(fam["dktadmin_server_start_time_seconds"])

	return Summary{
		Console: httpSummary{
			TotalRequests: sumCounter(fam["dktadmin_http_requests_total"], nil),
			ErrorRate:     errorRate(fam["dktadmin_http_requests_total"], "status_code"),
			P50Latency:    histogramPercentile(fam["dktadmin_http_request_duration_seconds"], 0.50),
			P95Latency:    histogramPercentile(fam["dktadmin_http_request_duration_seconds"], 0.95),
			P99Latency:    histogramPercentile(fam["dktadmin_http_request_duration_seconds"], 0.99),
		},
		Backend: backendSummary{
			TotalRequests:  sumCounter(fam["dktadmin_backend_requests_total"], nil),
			ErrorRate:      errorRate(fam["dktadmin_backend_requests_total"], "code"),
			ActiveRequests: gaugeValue(fam["dktadmin_backend_in_flight_requests"]),
			P50Latency:     histogramPercentile(fam["dktadmin_backend_request_duration_seconds"], 0.50),
			P95Latency:     histogramPercentile(fam["dktadmin_backend_request_duration_seconds"], 0.95),
		},
		Sessions: sessionInfo{
			Restored:    sumCounter(restorations, labelIs("outcome", "authenticated")),
			Cached:      sumCounter(restorations, labelIs("outcome", "cached")),
			Invalidated: sumCounter(restorations, labelIs("outcome", "invalidated")),
			Anonymous:   sumCounter(restorations, labelIs("outcome", "anonymous")),
		},
		Logins: loginInfo{
			Successes:         sumCounter(logins, labelIs("result", "success")),
			Failures:          sumCounter(logins, labelIs("result", "failure")),
			RateLimited:       sumCounter(fam["dktadmin_ratelimit_rejections_total"], nil),
			Logouts:           sumCounter(logouts, nil),
			FailedRevocations: sumCounter(logouts, labelIs("backend", "error")),
		},
		Server: serverInfo{
			StartTime:     start,
			UptimeSeconds: float64(time.Now().Unix()) - start,
		},
	}, nil
}

// --- Prometheus metric helpers ---

func labelIs(name, value string) func(*dto.Metric) bool {
	return func(m *dto.Metric) bool {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				return true
			}
		}
		return false
	}
}

func sumCounter(f *dto.MetricFamily, match func(*dto.Metric) bool) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() == nil || (match != nil && !match(m)) {
			continue
		}
		total += m.GetCounter().GetValue()
	}
	return total
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 {
		return 0
	}
	if ms[0].GetGauge() != nil {
		return ms[0].GetGauge().GetValue()
	}
	return 0
}

// errorRate is the share of samples whose status label is 4xx or 5xx.
func errorRate(f *dto.MetricFamily, statusLabel string) float64 {
	if f == nil {
		return 0
	}
	var total, errors float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() == nil {
			continue
		}
		v := m.GetCounter().GetValue()
		total += v
		for _, lp := range m.GetLabel() {
			if lp.GetName() == statusLabel {
				code := lp.GetValue()
				if len(code) > 0 && code[0] >= '4' {
					errors += v
				}
			}
		}
	}
	if total == 0 {
		return 0
	}
	return errors / total
}

// histogramPercentile computes a percentile from aggregated histogram buckets
// using linear interpolation.
func histogramPercentile(f *dto.MetricFamily, q float64) float64 {
	if f == nil {
		return 0
	}

	type bucket struct {
		upperBound      float64
		cumulativeCount uint64
	}
	var totalCount uint64
	bucketMap := make(map[float64]uint64)

	for _, m := range f.GetMetric() {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		totalCount += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			bucketMap[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}

	if totalCount == 0 {
		return 0
	}

	buckets := make([]bucket, 0, len(bucketMap))
	for ub, count := range bucketMap {
		buckets = append(buckets, bucket{upperBound: ub, cumulativeCount: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].upperBound < buckets[j].upperBound
	})

	rank := q * float64(totalCount)

	var prevBound float64
	var prevCount uint64
	for _, b := range buckets {
		if math.IsInf(b.upperBound, 1) {
			break
		}
		if float64(b.cumulativeCount) >= rank {
			bucketCount := b.cumulativeCount - prevCount
			if bucketCount == 0 {
				return b.upperBound
			}
			fraction := (rank - float64(prevCount)) / float64(bucketCount)
			return prevBound + fraction*(b.upperBound-prevBound)
		}
		prevBound = b.upperBound
		prevCount = b.cumulativeCount
	}

	for i := len(buckets) - 1; i >= 0; i-- {
		if !math.IsInf(buckets[i].upperBound, 1) {
			return buckets[i].upperBound
		}
	}
	return 0
}

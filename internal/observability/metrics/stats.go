package metrics

import (
	"math"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	alertsFamily     = "telehealth_vitals_alerts_total"
	readingsFamily   = "telehealth_vitals_readings_total"
	diagnosesFamily  = "telehealth_diagnosis_completed_total"
	llmLatencyFamily = "telehealth_diagnosis_llm_latency_seconds"
)

// Stats is a point in time summary read back from the gatherer.
type Stats struct {
	Readings          map[string]int64 `json:"readings"`
	AlertsBySeverity  map[string]int64 `json:"alertsBySeverity"`
	AlertsByVital     map[string]int64 `json:"alertsByVital"`
	DiagnosesBySource map[string]int64 `json:"diagnosesBySource"`
	LLMCalls          int64            `json:"llmCalls"`
	LLMLatencyP90Ms   float64          `json:"llmLatencyP90Ms"`
	LLMLatencyP95Ms   float64          `json:"llmLatencyP95Ms"`
}

// Snapshot summarises the service counters. Gather errors yield empty stats.
func Snapshot(gatherer prometheus.Gatherer) Stats {
	stats := Stats{
		Readings:          map[string]int64{},
		AlertsBySeverity:  map[string]int64{},
		AlertsByVital:     map[string]int64{},
		DiagnosesBySource: map[string]int64{},
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return stats
	}

	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case readingsFamily:
			sumCounterBy(mf, "status", stats.Readings)
		case alertsFamily:
			sumCounterBy(mf, "severity", stats.AlertsBySeverity)
			sumCounterBy(mf, "vital", stats.AlertsByVital)
		case diagnosesFamily:
			sumCounterBy(mf, "provenance", stats.DiagnosesBySource)
		case llmLatencyFamily:
			total, p90, p95 := latencyQuantiles(mf)
			stats.LLMCalls = total
			stats.LLMLatencyP90Ms = p90 * 1000.0
			stats.LLMLatencyP95Ms = p95 * 1000.0
		}
	}
	return stats
}

func sumCounterBy(mf *dto.MetricFamily, label string, into map[string]int64) {
	for _, metric := range mf.Metric {
		if metric == nil || metric.GetCounter() == nil {
			continue
		}
		into[labelValue(metric, label)] += int64(metric.GetCounter().GetValue())
	}
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.Label {
		if lp != nil && lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// latencyQuantiles aggregates successful call histograms across providers.
func latencyQuantiles(mf *dto.MetricFamily) (total int64, p90, p95 float64) {
	cumulativeByUpper := map[float64]uint64{}
	var sampleCount uint64
	for _, metric := range mf.Metric {
		if metric == nil || labelValue(metric, "status") != "ok" {
			continue
		}
		h := metric.GetHistogram()
		if h == nil {
			continue
		}
		sampleCount += h.GetSampleCount()
		for _, b := range h.Bucket {
			if b == nil {
				continue
			}
			cumulativeByUpper[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if sampleCount == 0 || len(cumulativeByUpper) == 0 {
		return 0, 0, 0
	}

	uppers := make([]float64, 0, len(cumulativeByUpper))
	for upper := range cumulativeByUpper {
		uppers = append(uppers, upper)
	}
	sort.Float64s(uppers)

	return int64(sampleCount),
		histogramQuantile(0.90, sampleCount, uppers, cumulativeByUpper),
		histogramQuantile(0.95, sampleCount, uppers, cumulativeByUpper)
}

func histogramQuantile(q float64, total uint64, uppers []float64, cumulativeByUpper map[float64]uint64) float64 {
	if total == 0 || q <= 0 {
		return 0
	}
	target := q * float64(total)
	var prevUpper, prevCum float64
	for _, upper := range uppers {
		cum := float64(cumulativeByUpper[upper])
		if cum < target {
			prevUpper = upper
			prevCum = cum
			continue
		}
		bucketCount := cum - prevCum
		if bucketCount <= 0 || upper == prevUpper {
			return upper
		}
		if math.IsInf(upper, 1) {
			return prevUpper
		}
		fraction := (target - prevCum) / bucketCount
		return prevUpper + fraction*(upper-prevUpper)
	}
	return uppers[len(uppers)-1]
}

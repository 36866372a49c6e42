// Package health implements the counter-driven health checks of
// original_source/app/metrics/health.py: a checker stays "healthy" as long
// as a watched Prometheus counter keeps incrementing within an interval,
// and caches that verdict between evaluations instead of re-scanning every
// request.
package health

import (
	"sort"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// CounterHealthChecker watches a CounterVec for any sample whose labelKey
// matches one of labelValues. It is healthy as soon as any such sample's
// value strictly increases between two checks.
type CounterHealthChecker struct {
	counter     *prometheus.CounterVec
	interval    time.Duration
	labelKey    string
	labelValues map[string]struct{}

	lastValues   map[string]float64
	lastCheck    time.Time
	healthy      bool
	firstCheck   bool
}

// NewCounterHealthChecker builds a checker over counter, healthy whenever
// any sample with labelKey in labelValues has increased within interval of
// the last check.
func NewCounterHealthChecker(counter *prometheus.CounterVec, interval time.Duration, labelKey string, labelValues ...string) *CounterHealthChecker {
	set := make(map[string]struct{}, len(labelValues))
	for _, v := range labelValues {
		set[v] = struct{}{}
	}
	return &CounterHealthChecker{
		counter:     counter,
		interval:    interval,
		labelKey:    labelKey,
		labelValues: set,
		lastValues:  make(map[string]float64),
		firstCheck:  true,
	}
}

// Check returns the cached health verdict if it is still within interval of
// the last check and was already healthy; otherwise it re-scans the
// counter's current samples and recomputes.
func (c *CounterHealthChecker) Check() bool {
	now := time.Now()
	if c.healthy && !c.firstCheck && now.Before(c.lastCheck.Add(c.interval)) {
		return c.healthy
	}

	c.healthy = false
	metrics := collectMetrics(c.counter)
	for _, m := range metrics {
		labels := labelMap(m)
		if _, ok := c.labelValues[labels[c.labelKey]]; !ok {
			continue
		}
		key := sortedKey(labels)
		current := m.GetCounter().GetValue()
		if current-c.lastValues[key] > 0 {
			c.healthy = true
		}
		c.lastValues[key] = current
	}

	c.lastCheck = now
	c.firstCheck = false
	return c.healthy
}

func collectMetrics(counter *prometheus.CounterVec) []*dto.Metric {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		counter.Collect(ch)
		close(ch)
	}()
	var out []*dto.Metric
	for raw := range ch {
		var m dto.Metric
		if err := raw.Write(&m); err != nil {
			continue
		}
		out = append(out, &m)
	}
	return out
}

func labelMap(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func sortedKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(';')
	}
	return b.String()
}

// Service aggregates named checkers and reports overall health the way
// HealthService.check_all does: every checker must be true for the whole
// service to report healthy.
type Service struct {
	checkers map[string]*CounterHealthChecker
}

func NewService() *Service {
	return &Service{checkers: make(map[string]*CounterHealthChecker)}
}

func (s *Service) AddChecker(name string, checker *CounterHealthChecker) {
	s.checkers[name] = checker
}

// CheckAll evaluates every registered checker and returns a name→healthy map.
func (s *Service) CheckAll() map[string]bool {
	out := make(map[string]bool, len(s.checkers))
	for name, checker := range s.checkers {
		out[name] = checker.Check()
	}
	return out
}

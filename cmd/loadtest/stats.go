package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// scenarioKey собирает итог сценария целиком рядом с отдельными RPC.
const scenarioKey = "scenario"

// recorder копит сырые замеры по имени вызова.
type recorder struct {
	mu      sync.Mutex
	samples map[string]*series
}

type series struct {
	latencies []time.Duration
	codes     map[codes.Code]int64
}

func newRecorder() *recorder {
	return &recorder{samples: make(map[string]*series)}
}

func (r *recorder) observe(name string, latency time.Duration, err error) {
	code := status.Code(err)

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.samples[name]
	if !ok {
		s = &series{codes: make(map[codes.Code]int64)}
		r.samples[name] = s
	}
	s.latencies = append(s.latencies, latency)
	s.codes[code]++
}

// latency хранит перцентили в миллисекундах.
type latency struct {
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
	Max  float64 `json:"max"`
}

type callStats struct {
	Calls     int64            `json:"calls"`
	Failed    int64            `json:"failed"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latency          `json:"latency_ms"`
}

// ErrorRate возвращает долю неуспешных вызовов.
func (s callStats) ErrorRate() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Calls)
}

type summary struct {
	StartedAt time.Time            `json:"started_at"`
	Elapsed   time.Duration        `json:"elapsed_ns"`
	Scenarios callStats            `json:"scenarios"`
	Calls     map[string]callStats `json:"calls"`
}

// Throughput считает завершённые сценарии в секунду.
func (s summary) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Scenarios.Calls) / s.Elapsed.Seconds()
}

func (r *recorder) summarize(startedAt time.Time, elapsed time.Duration) summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := summary{
		StartedAt: startedAt.UTC(),
		Elapsed:   elapsed,
		Calls:     make(map[string]callStats, len(r.samples)),
	}
	for name, s := range r.samples {
		stats := s.stats()
		if name == scenarioKey {
			out.Scenarios = stats
			continue
		}
		out.Calls[name] = stats
	}
	return out
}

func (s *series) stats() callStats {
	out := callStats{
		Calls:     int64(len(s.latencies)),
		Codes:     make(map[string]int64, len(s.codes)),
		LatencyMs: summarizeLatencies(s.latencies),
	}
	for code, n := range s.codes {
		out.Codes[code.String()] = n
		if code != codes.OK {
			out.Failed += n
		}
	}
	return out
}

func summarizeLatencies(values []time.Duration) latency {
	if len(values) == 0 {
		return latency{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var total time.Duration
	for _, v := range sorted {
		total += v
	}
	return latency{
		Mean: millis(total / time.Duration(len(sorted))),
		P50:  millis(nearestRank(sorted, 50)),
		P95:  millis(nearestRank(sorted, 95)),
		P99:  millis(nearestRank(sorted, 99)),
		Max:  millis(sorted[len(sorted)-1]),
	}
}

// nearestRank берёт наименьшее значение, которое покрывает p процентов выборки.
func nearestRank(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p * float64(len(sorted)) / 100))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func printSummary(w io.Writer, result summary, cfg config) {
	_, _ = fmt.Fprintf(w, "mode=%s target=%s scenarios=%d failed=%d error_rate=%.4f\n",
		cfg.mode, cfg.target(), result.Scenarios.Calls, result.Scenarios.Failed, result.Scenarios.ErrorRate())
	_, _ = fmt.Fprintf(w, "elapsed=%s throughput=%.2f/s\n", result.Elapsed.Round(time.Millisecond), result.Throughput())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "call\tcalls\tfailed\tp50ms\tp95ms\tp99ms\tmaxms")
	row := func(name string, s callStats) {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n",
			name, s.Calls, s.Failed, s.LatencyMs.P50, s.LatencyMs.P95, s.LatencyMs.P99, s.LatencyMs.Max)
	}
	row(scenarioKey, result.Scenarios)

	names := make([]string, 0, len(result.Calls))
	for name := range result.Calls {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		row(name, result.Calls[name])
	}
	_ = tw.Flush()
}

func saveSummary(path string, result summary) error {
	clean := filepath.Clean(path)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("report path must name a file inside the working directory: %q", path)
	}
	if filepath.IsAbs(clean) {
		return errors.New("report path must be relative")
	}

	// #nosec G304 -- путь задаёт оператор через флаг -output.
	f, err := os.Create(clean)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

package analysis

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/The-Promised-Neverland/tlsbench/internal/models"
)

const mib = 1024 * 1024

// Summary aggregates the samples of one connection type.
type Summary struct {
	ConnectionType   models.ConnectionType
	Runs             int
	TotalDataMB      float64
	TotalDurationSec float64
	AverageSpeedMBps float64 // mean of per-sample speeds
}

// Overhead compares TLS against plain TCP mean speeds.
type Overhead struct {
	TCPSpeedMBps float64
	TLSSpeedMBps float64
	Difference   float64
	Percent      float64
}

// SizeStats is the spread of transfer time and speed for one connection type
// at one payload size. Std values are sample standard deviations, 0 for a
// single run.
type SizeStats struct {
	ConnectionType models.ConnectionType
	DataSizeMB     float64
	Runs           int
	MeanDurationMs float64
	StdDurationMs  float64
	MeanSpeedMBps  float64
	StdSpeedMBps   float64
}

// SizeOverhead is the TLS time overhead at one payload size.
type SizeOverhead struct {
	DataSizeMB    float64
	TCPDurationMs float64
	TLSDurationMs float64
	Percent       float64
}

// SpeedMBps is MiB per second, 0 for a non-positive duration.
func SpeedMBps(s models.PerformanceSample) float64 {
	secs := s.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.DataSize) / mib / secs
}

// Summarize groups samples by connection type, TCP first.
func Summarize(samples []models.PerformanceSample) []Summary {
	byType := map[models.ConnectionType]*Summary{}
	speedSum := map[models.ConnectionType]float64{}
	for _, s := range samples {
		sum, ok := byType[s.ConnectionType]
		if !ok {
			sum = &Summary{ConnectionType: s.ConnectionType}
			byType[s.ConnectionType] = sum
		}
		sum.Runs++
		sum.TotalDataMB += float64(s.DataSize) / mib
		sum.TotalDurationSec += s.Duration.Seconds()
		speedSum[s.ConnectionType] += SpeedMBps(s)
	}
	var out []Summary
	for _, ct := range []models.ConnectionType{models.ConnTCP, models.ConnTLS} {
		sum, ok := byType[ct]
		if !ok {
			continue
		}
		sum.AverageSpeedMBps = speedSum[ct] / float64(sum.Runs)
		out = append(out, *sum)
	}
	return out
}

// CompareTLS reports the TLS overhead when both connection types are present.
func CompareTLS(summaries []Summary) (Overhead, bool) {
	var tcp, tls *Summary
	for i := range summaries {
		switch summaries[i].ConnectionType {
		case models.ConnTCP:
			tcp = &summaries[i]
		case models.ConnTLS:
			tls = &summaries[i]
		}
	}
	if tcp == nil || tls == nil {
		return Overhead{}, false
	}
	o := Overhead{
		TCPSpeedMBps: tcp.AverageSpeedMBps,
		TLSSpeedMBps: tls.AverageSpeedMBps,
		Difference:   tcp.AverageSpeedMBps - tls.AverageSpeedMBps,
	}
	if tcp.AverageSpeedMBps > 0 {
		o.Percent = o.Difference / tcp.AverageSpeedMBps * 100
	}
	return o, true
}

// BySize groups samples by connection type and payload size, TCP first and
// sizes ascending within each type.
func BySize(samples []models.PerformanceSample) []SizeStats {
	type key struct {
		ct   models.ConnectionType
		size int64
	}
	durations := map[key][]float64{}
	speeds := map[key][]float64{}
	for _, s := range samples {
		k := key{s.ConnectionType, s.DataSize}
		durations[k] = append(durations[k], s.Duration.Seconds()*1000)
		speeds[k] = append(speeds[k], SpeedMBps(s))
	}
	keys := make([]key, 0, len(durations))
	for k := range durations {
		keys = append(keys, k)
	}
	rank := func(ct models.ConnectionType) int {
		if ct == models.ConnTCP {
			return 0
		}
		return 1
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ct != keys[j].ct {
			return rank(keys[i].ct) < rank(keys[j].ct)
		}
		return keys[i].size < keys[j].size
	})

	out := make([]SizeStats, 0, len(keys))
	for _, k := range keys {
		meanDur, stdDur := meanStd(durations[k])
		meanSpeed, stdSpeed := meanStd(speeds[k])
		out = append(out, SizeStats{
			ConnectionType: k.ct,
			DataSizeMB:     float64(k.size) / mib,
			Runs:           len(durations[k]),
			MeanDurationMs: meanDur,
			StdDurationMs:  stdDur,
			MeanSpeedMBps:  meanSpeed,
			StdSpeedMBps:   stdSpeed,
		})
	}
	return out
}

// CompareBySize reports the TLS time overhead for every size measured over
// both connection types.
func CompareBySize(stats []SizeStats) []SizeOverhead {
	tcp := map[float64]float64{}
	for _, s := range stats {
		if s.ConnectionType == models.ConnTCP {
			tcp[s.DataSizeMB] = s.MeanDurationMs
		}
	}
	var out []SizeOverhead
	for _, s := range stats {
		if s.ConnectionType != models.ConnTLS {
			continue
		}
		tcpMs, ok := tcp[s.DataSizeMB]
		if !ok {
			continue
		}
		o := SizeOverhead{DataSizeMB: s.DataSizeMB, TCPDurationMs: tcpMs, TLSDurationMs: s.MeanDurationMs}
		if tcpMs > 0 {
			o.Percent = (s.MeanDurationMs - tcpMs) / tcpMs * 100
		}
		out = append(out, o)
	}
	return out
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)-1))
}

// WriteReport prints the summary table and the TLS impact section.
func WriteReport(w io.Writer, samples []models.PerformanceSample) {
	summaries := Summarize(samples)
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No data to analyze.")
		return
	}
	rule := strings.Repeat("=", 60)
	header := color.New(color.FgCyan, color.Bold)

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	header.Fprintln(w, "Performance Summary:")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-6s %6s %16s %16s %16s\n", "type", "runs", "total_data_mb", "total_duration_s", "avg_speed_mbps")
	for _, s := range summaries {
		fmt.Fprintf(w, "%-6s %6d %16.4f %16.6f %16.2f\n", s.ConnectionType, s.Runs, s.TotalDataMB, s.TotalDurationSec, s.AverageSpeedMBps)
	}

	writeSizeBreakdown(w, samples, rule, header)

	o, ok := CompareTLS(summaries)
	if !ok {
		fmt.Fprintln(w)
		return
	}
	impact := color.New(color.FgGreen)
	if o.Percent > 0 {
		impact = color.New(color.FgYellow)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	header.Fprintln(w, "TLS Performance Impact:")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "TCP Average Speed:  %.2f MB/s\n", o.TCPSpeedMBps)
	fmt.Fprintf(w, "TLS Average Speed:  %.2f MB/s\n", o.TLSSpeedMBps)
	fmt.Fprintf(w, "Speed Difference:   %.2f MB/s\n", o.Difference)
	impact.Fprintf(w, "TLS Overhead:       %.2f%%\n", o.Percent)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

func writeSizeBreakdown(w io.Writer, samples []models.PerformanceSample, rule string, header *color.Color) {
	stats := BySize(samples)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	header.Fprintln(w, "Per-Size Breakdown:")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-6s %10s %6s %12s %12s %12s %12s\n", "type", "size_mb", "runs", "mean_ms", "std_ms", "mean_mbps", "std_mbps")
	for _, s := range stats {
		fmt.Fprintf(w, "%-6s %10.2f %6d %12.3f %12.3f %12.2f %12.2f\n",
			s.ConnectionType, s.DataSizeMB, s.Runs, s.MeanDurationMs, s.StdDurationMs, s.MeanSpeedMBps, s.StdSpeedMBps)
	}

	overheads := CompareBySize(stats)
	if len(overheads) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%10s %12s %12s %12s\n", "size_mb", "tcp_ms", "tls_ms", "overhead_%")
	for _, o := range overheads {
		fmt.Fprintf(w, "%10.2f %12.3f %12.3f %12.2f\n", o.DataSizeMB, o.TCPDurationMs, o.TLSDurationMs, o.Percent)
	}
}

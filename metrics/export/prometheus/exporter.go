package prometheus

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	goTrust "github.com/MrEthical07/goTrust"
	"github.com/MrEthical07/goTrust/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() goTrust.MetricsSnapshot
	AuditDropped() uint64
	Ready() error
}

// PrometheusExporter renders engine counters in text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from engine on every scrape.
func NewPrometheusExporter(engine *goTrust.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource reads from any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the exposition on every request.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_ = p.WriteTo(w)
	})
}

// Render returns the exposition as a string. It is empty when metrics are
// disabled and nothing was dropped.
func (p *PrometheusExporter) Render() string {
	var buf bytes.Buffer
	_ = p.WriteTo(&buf)
	return buf.String()
}

// WriteTo writes the exposition to w.
func (p *PrometheusExporter) WriteTo(w io.Writer) error {
	if p == nil || p.source == nil {
		return nil
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return nil
	}

	ew := &errWriter{w: w}
	for _, def := range internaldefs.CounterDefs {
		ew.family(def.Name, def.Help, "counter")
		ew.printf("%s %d\n", def.Name, snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		ew.family(def.Name, def.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			ew.printf("%s_bucket{le=%q} %d\n", def.Name, le, cumulative[i])
		}
		// Snapshots carry bucket counts only, so the sum is not known.
		ew.printf("%s_sum 0\n%s_count %d\n", def.Name, def.Name, cumulative[len(cumulative)-1])
	}

	ew.family("gotrust_audit_dropped_total", "Audit events dropped by dispatcher backpressure.", "counter")
	ew.printf("gotrust_audit_dropped_total %d\n", dropped)

	available := 0
	if p.source.Ready() == nil {
		available = 1
	}
	ew.family("gotrust_token_key_available", "1 when the token key is loaded.", "gauge")
	ew.printf("gotrust_token_key_available %d\n", available)
	return ew.err
}

// errWriter keeps the first write error and skips later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) family(name, help, kind string) {
	e.printf("# HELP %s %s\n# TYPE %s %s\n", name, escapeHelp(help), name, kind)
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}

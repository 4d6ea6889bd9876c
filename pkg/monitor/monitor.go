// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package monitor serves the supervisor's web interface: a summary
// page for humans and a Prometheus endpoint for machines.
package monitor

import (
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fuzzkit/fuzzkit/pkg/log"
	"github.com/fuzzkit/fuzzkit/pkg/stats"
)

type Monitor struct {
	tracker *stats.Tracker
	start   time.Time
	mux     *http.ServeMux
}

func New(tracker *stats.Tracker) *Monitor {
	mon := &Monitor{
		tracker: tracker,
		start:   time.Now(),
		mux:     http.NewServeMux(),
	}
	mon.mux.HandleFunc("/", mon.httpSummary)
	mon.mux.Handle("/metrics", promhttp.Handler())
	return mon
}

// Serve listens on addr until the listener fails. All requests are
// access-logged at high verbosity.
func (mon *Monitor) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %v: %w", addr, err)
	}
	log.Logf(0, "serving web interface on http://%v", ln.Addr())
	return http.Serve(ln, mon.Handler())
}

func (mon *Monitor) Handler() http.Handler {
	return handlers.LoggingHandler(log.VerboseWriter(2), mon.mux)
}

type summaryData struct {
	Uptime       time.Duration
	CorpusSize   uint64
	Executions   uint64
	ExecsPerSec  uint64
	Crashes      uint64
	Timeouts     uint64
	MeanExecTime time.Duration
	Mutators     []stats.MutatorUse
	RecentLog    string
}

func (mon *Monitor) httpSummary(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	data := summaryData{
		Uptime:       now.Sub(mon.start).Round(time.Second),
		CorpusSize:   mon.tracker.CorpusSize(),
		Executions:   mon.tracker.TotalExecutions(),
		ExecsPerSec:  mon.tracker.TotalExecsPerSec(now),
		Crashes:      mon.tracker.Crashes(),
		Timeouts:     mon.tracker.Timeouts(),
		MeanExecTime: mon.tracker.MeanExecTime(),
		Mutators:     mon.tracker.MutatorUses(),
		RecentLog:    log.CachedLogOutput(),
	}
	if err := summaryTemplate.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

var summaryTemplate = template.Must(template.New("summary").Parse(`
<!doctype html>
<html>
<head><title>fuzzkit</title></head>
<body>
<h1>fuzzkit</h1>
<table>
<tr><td>uptime</td><td>{{.Uptime}}</td></tr>
<tr><td>corpus size</td><td>{{.CorpusSize}}</td></tr>
<tr><td>executions</td><td>{{.Executions}}</td></tr>
<tr><td>execs/sec</td><td>{{.ExecsPerSec}}</td></tr>
<tr><td>mean exec time</td><td>{{.MeanExecTime}}</td></tr>
<tr><td>crashes</td><td>{{.Crashes}}</td></tr>
<tr><td>timeouts</td><td>{{.Timeouts}}</td></tr>
</table>
<p><a href="/metrics">prometheus metrics</a></p>
{{if .Mutators}}
<h2>mutators</h2>
<table>
{{range .Mutators}}<tr><td>{{.Name}}</td><td>{{.Count}}</td></tr>
{{end}}</table>
{{end}}
<h2>recent log</h2>
<pre>{{.RecentLog}}</pre>
</body>
</html>
`))

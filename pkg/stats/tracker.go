// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stats

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/VividCortex/gohistogram"
	"github.com/prometheus/client_golang/prometheus"
)

const histogramBuckets = 255

// Tracker aggregates the stats of all fuzzing workers. Workers are
// addressed by a small dense id; reporting for an unseen id grows the
// client table.
type Tracker struct {
	mu       sync.Mutex
	start    time.Time
	clients  []*Client
	execTime *gohistogram.NumericHistogram
	mutators map[string]uint64
}

func NewTracker() *Tracker {
	t := &Tracker{
		start:    time.Now(),
		execTime: gohistogram.NewHistogram(histogramBuckets),
		mutators: make(map[string]uint64),
	}
	// Registration fails on re-creation in tests, which is fine.
	prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fzk_executions_total",
		Help: "Total number of target executions across all workers.",
	}, func() float64 { return float64(t.TotalExecutions()) }))
	prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fzk_corpus_size",
		Help: "Number of inputs in the corpus.",
	}, func() float64 { return float64(t.CorpusSize()) }))
	prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fzk_crashes_total",
		Help: "Total number of crashes observed.",
	}, func() float64 { return float64(t.Crashes()) }))
	return t
}

// Client returns the stats slot of the given worker, growing the
// table as needed.
func (t *Tracker) Client(id int) *Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client(id)
}

func (t *Tracker) client(id int) *Client {
	for id >= len(t.clients) {
		t.clients = append(t.clients, NewClient(t.start))
	}
	return t.clients[id]
}

func (t *Tracker) UpdateExecutions(id int, execs uint64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.client(id).UpdateExecutions(execs, now)
}

func (t *Tracker) UpdateCorpusSize(id int, size uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.client(id).CorpusSize = size
}

func (t *Tracker) AddCrash(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.client(id).Crashes++
}

func (t *Tracker) AddTimeout(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.client(id).Timeouts++
}

// AddMutatorUses counts one scheduling of each named mutator.
func (t *Tracker) AddMutatorUses(names []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, name := range names {
		t.mutators[name]++
	}
}

// MutatorUse is one row of the per-mutator usage table.
type MutatorUse struct {
	Name  string
	Count uint64
}

// MutatorUses returns the usage table sorted by descending count.
func (t *Tracker) MutatorUses() []MutatorUse {
	t.mu.Lock()
	defer t.mu.Unlock()
	uses := make([]MutatorUse, 0, len(t.mutators))
	for name, count := range t.mutators {
		uses = append(uses, MutatorUse{name, count})
	}
	sort.Slice(uses, func(i, j int) bool {
		if uses[i].Count != uses[j].Count {
			return uses[i].Count > uses[j].Count
		}
		return uses[i].Name < uses[j].Name
	})
	return uses
}

// ObserveExecTime feeds one execution's wall time into the latency
// distribution.
func (t *Tracker) ObserveExecTime(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.execTime.Add(float64(d.Microseconds()))
}

// MeanExecTime returns the mean execution latency seen so far.
func (t *Tracker) MeanExecTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.execTime.Mean()) * time.Microsecond
}

func (t *Tracker) TotalExecutions() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total uint64
	for _, c := range t.clients {
		total += c.Executions
	}
	return total
}

func (t *Tracker) TotalExecsPerSec(now time.Time) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total uint64
	for _, c := range t.clients {
		total += c.ExecsPerSec(now)
	}
	return total
}

func (t *Tracker) CorpusSize() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total uint64
	for _, c := range t.clients {
		total += c.CorpusSize
	}
	return total
}

func (t *Tracker) Crashes() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total uint64
	for _, c := range t.clients {
		total += c.Crashes
	}
	return total
}

func (t *Tracker) Timeouts() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total uint64
	for _, c := range t.clients {
		total += c.Timeouts
	}
	return total
}

// Summary renders a one-line progress report for periodic logging.
func (t *Tracker) Summary(now time.Time) string {
	return fmt.Sprintf("corpus=%v execs=%v execs/sec=%v crashes=%v timeouts=%v",
		t.CorpusSize(), t.TotalExecutions(), t.TotalExecsPerSec(now), t.Crashes(), t.Timeouts())
}

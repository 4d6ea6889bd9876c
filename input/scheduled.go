// Copyright 2025 fuzzkit project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package input

// ScheduledMutator applies a random stack of catalog entries to an
// input. The stack depth is a random power of two between 2 and 64,
// each step picks a uniformly random catalog entry, and the overall
// result is Mutated if any step mutated.
type ScheduledMutator struct {
	catalog []Mutator
}

func NewScheduledMutator(catalog []Mutator) *ScheduledMutator {
	if len(catalog) == 0 {
		panic("input: empty mutation catalog")
	}
	return &ScheduledMutator{catalog: catalog}
}

func (sm *ScheduledMutator) Mutate(ctx *Ctx, in *Input) Result {
	return sm.mutate(ctx, in, nil)
}

func (sm *ScheduledMutator) iterations(ctx *Ctx) int {
	return 1 << uint(1+ctx.r.Intn(6))
}

func (sm *ScheduledMutator) schedule(ctx *Ctx) int {
	return ctx.r.Intn(len(sm.catalog))
}

func (sm *ScheduledMutator) mutate(ctx *Ctx, in *Input, logFn func(idx int)) Result {
	res := Skipped
	for i := sm.iterations(ctx); i > 0; i-- {
		idx := sm.schedule(ctx)
		if logFn != nil {
			logFn(idx)
		}
		if sm.catalog[idx].Apply(ctx, in) == Mutated {
			res = Mutated
		}
	}
	return res
}

// MetadataSink receives the mutation trail of an accepted input.
// Corpus entries implement it.
type MetadataSink interface {
	SetMutationLog(names []string)
}

// LoggerMutator wraps a ScheduledMutator and records which catalog
// entries each Mutate call scheduled. After the target ran, PostExec
// either attaches the trail to the accepted corpus entry or discards
// it; the log never survives past PostExec.
type LoggerMutator struct {
	*ScheduledMutator
	log []int
}

func NewLoggerMutator(sm *ScheduledMutator) *LoggerMutator {
	return &LoggerMutator{ScheduledMutator: sm}
}

func (lm *LoggerMutator) Mutate(ctx *Ctx, in *Input) Result {
	lm.log = lm.log[:0]
	return lm.mutate(ctx, in, func(idx int) {
		lm.log = append(lm.log, idx)
	})
}

// Log returns the catalog indices scheduled by the last Mutate call.
func (lm *LoggerMutator) Log() []int {
	return lm.log
}

// LogNames returns the catalog entry names scheduled by the last
// Mutate call.
func (lm *LoggerMutator) LogNames() []string {
	names := make([]string, len(lm.log))
	for i, idx := range lm.log {
		names[i] = lm.catalog[idx].Name
	}
	return names
}

func (lm *LoggerMutator) PostExec(accepted MetadataSink) {
	if accepted != nil {
		accepted.SetMutationLog(lm.LogNames())
	}
	lm.log = lm.log[:0]
}

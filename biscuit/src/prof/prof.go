// Package prof turns the scheduler's per-task accounting into a
// pprof-format profile, so a developer attached to the kernel's
// diagnostic console can pull a CPU profile of simulated task runtime
// the same way they would `go tool pprof` a hosted Go program. This is
// SPEC_FULL.md's ambient-instrumentation supplement: nothing here feeds
// back into scheduling decisions.
package prof

import (
	"fmt"

	"github.com/google/pprof/profile"

	"stats"
)

// TaskUsage is the accounting snapshot prof.Dump needs for one task --
// just enough of proc.Task/accnt.Accnt_t to build a profile sample,
// declared locally (rather than importing proc) so this package stays a
// leaf the way intr.Scheduler and sysc.Dispatcher do: the kernel's boot
// code maps *proc.Task values into these before calling Dump.
type TaskUsage struct {
	ID     uint64
	Name   string
	UserNs int64
	SysNs  int64
}

/// Dump builds a profile.Profile with one sample per task, its two
/// values the task's accumulated user and system nanoseconds
/// (accnt.Accnt_t.Userns/Sysns). Each task gets its own synthetic
/// Function/Location pair named after TaskUsage.Name so pprof's usual
/// "top" / "list" views group samples by task identity.
func Dump(tasks []TaskUsage) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "user", Unit: "nanoseconds"},
			{Type: "sys", Unit: "nanoseconds"},
		},
		DefaultSampleType: "user",
		TimeNanos:         int64(stats.Rdtsc()),
	}

	for i, t := range tasks {
		id := uint64(i + 1)
		fn := &profile.Function{
			ID:   id,
			Name: taskFunctionName(t),
		}
		loc := &profile.Location{
			ID:   id,
			Line: []profile.Line{{Function: fn}},
		}
		sample := &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{t.UserNs, t.SysNs},
			Label:    map[string][]string{"tid": {fmt.Sprintf("%d", t.ID)}},
		}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, sample)
	}

	return p
}

func taskFunctionName(t TaskUsage) string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("task#%d", t.ID)
}

package pipeline

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/metrics"
)

var transitions = map[core.State][]core.State{
	core.StateIdle:         {core.StatePlanning},
	core.StatePlanning:     {core.StateRetrieving, core.StateSynthesizing},
	core.StateRetrieving:   {core.StateValidating, core.StateSummarizing},
	core.StateValidating:   {core.StateRefining, core.StateAbstracting},
	core.StateRefining:     {core.StateRetrieving, core.StateAbstracting},
	core.StateAbstracting:  {core.StateSynthesizing},
	core.StateSynthesizing: {core.StateAugmenting, core.StateSummarizing},
	core.StateAugmenting:   {core.StateRetrieving},
	core.StateSummarizing:  {core.StateDone},
}

var progressMessages = map[core.State]string{
	core.StatePlanning:     "Planning the search",
	core.StateRetrieving:   "Searching the web",
	core.StateValidating:   "Checking sources",
	core.StateRefining:     "Refining the search",
	core.StateAbstracting:  "Extracting facts",
	core.StateSynthesizing: "Writing the answer",
	core.StateAugmenting:   "Running one more search",
	core.StateSummarizing:  "Updating memory",
	core.StateDone:         "Done",
	core.StateFailed:       "Failed",
}

// run tracks the state machine of a single query.
type run struct {
	id         string
	state      core.State
	since      time.Time
	started    time.Time
	trace      []core.Transition
	refined    bool
	augmented  bool
	rejections []string
	onProgress func(core.Progress)
	now        core.Clock
}

func newRun(now core.Clock, onProgress func(core.Progress)) *run {
	t := now()
	return &run{
		id:         uuid.NewString(),
		state:      core.StateIdle,
		since:      t,
		started:    t,
		onProgress: onProgress,
		now:        now,
	}
}

// to moves the run to the next state. Refining and Augmenting may each be
// entered once.
func (r *run) to(next core.State, note string) error {
	if next != core.StateFailed && !slices.Contains(transitions[r.state], next) {
		return fmt.Errorf("illegal transition %s -> %s", r.state, next)
	}
	if r.state == core.StateDone || r.state == core.StateFailed {
		return fmt.Errorf("run already finished in %s", r.state)
	}
	switch next {
	case core.StateRefining:
		if r.refined {
			return fmt.Errorf("refinement already used")
		}
		r.refined = true
	case core.StateAugmenting:
		if r.augmented {
			return fmt.Errorf("augmentation already used")
		}
		r.augmented = true
	}

	t := r.now()
	took := t.Sub(r.since)
	if r.state != core.StateIdle {
		metrics.StageDuration.WithLabelValues(string(r.state)).Observe(took.Seconds())
	}
	r.trace = append(r.trace, core.Transition{From: r.state, To: next, At: t, Took: took, Note: note})
	r.state = next
	r.since = t

	if r.onProgress != nil {
		r.onProgress(core.Progress{RunID: r.id, State: next, Message: progressMessages[next]})
	}
	return nil
}

func (r *run) fail(err error) {
	if r.state == core.StateDone || r.state == core.StateFailed {
		return
	}
	_ = r.to(core.StateFailed, err.Error())
}

func (r *run) elapsed() time.Duration {
	return r.now().Sub(r.started)
}

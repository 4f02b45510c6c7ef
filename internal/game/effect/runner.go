package effect

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/udisondev/spellcore/internal/event"
)

// DefaultMaxChainLifetime bounds how long a run may stay unfinished before the
// watchdog force-completes it.
const DefaultMaxChainLifetime = 60 * time.Second

type stage uint8

const (
	stageEnter stage = iota
	stageWait
	stageChildren
)

// frame is the execution state of one node within one run.
type frame struct {
	id    NodeID
	node  *Node
	in    Targets
	out   Targets
	task  Task
	stage stage
	next  int // index of the next child to start
}

// Run is one execution of a chain. Each root owns a stack of frames: children of a
// node run one after another, so only the path to the active node is ever live.
type Run struct {
	id        uint64
	chain     *Chain
	cc        *CastContext
	stacks    [][]*frame
	rootDone  []bool
	completed int
	startedAt time.Duration
	onDone    func()
	done      bool
}

// ID returns the run sequence number.
func (r *Run) ID() uint64 { return r.id }

// Context returns the cast context the run executes under.
func (r *Run) Context() *CastContext { return r.cc }

// Done reports whether every root has completed.
func (r *Run) Done() bool { return r.done }

// Completed returns how many roots have completed.
func (r *Run) Completed() int { return r.completed }

type backgroundTask struct {
	cc   *CastContext
	task Task
	done bool
}

// Runner is the cooperative scheduler for chain runs.
//
// Not safe for concurrent use: Start, Schedule and Tick must be called from the
// goroutine that drives the simulation.
type Runner struct {
	env         *Env
	maxLifetime time.Duration

	runs       []*Run
	background []*backgroundTask
	nextRun    uint64
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxChainLifetime sets the watchdog limit. Zero disables the watchdog.
func WithMaxChainLifetime(d time.Duration) RunnerOption {
	return func(r *Runner) { r.maxLifetime = d }
}

// NewRunner creates a runner bound to env.
func NewRunner(env *Env, opts ...RunnerOption) *Runner {
	r := &Runner{
		env:         env,
		maxLifetime: DefaultMaxChainLifetime,
	}
	for _, opt := range opts {
		opt(r)
	}
	env.runner = r
	return r
}

// Env returns the services the runner executes against.
func (r *Runner) Env() *Env { return r.env }

// Active returns the number of unfinished runs.
func (r *Runner) Active() int {
	n := 0
	for _, run := range r.runs {
		if !run.done {
			n++
		}
	}
	return n
}

// Background returns the number of live background tasks.
func (r *Runner) Background() int {
	n := 0
	for _, b := range r.background {
		if !b.done {
			n++
		}
	}
	return n
}

// Start begins a run of chain. Every root is polled immediately and then once per Tick.
// onDone is called exactly once, after every root has completed.
func (r *Runner) Start(chain *Chain, cc *CastContext, targets Targets, onDone func()) *Run {
	r.nextRun++
	run := &Run{
		id:        r.nextRun,
		chain:     chain,
		cc:        cc,
		startedAt: r.env.Now(),
		onDone:    onDone,
	}
	if chain.Empty() {
		r.finish(run)
		return run
	}

	run.stacks = make([][]*frame, len(chain.Roots))
	run.rootDone = make([]bool, len(chain.Roots))
	for i, root := range chain.Roots {
		run.stacks[i] = []*frame{{id: root, in: targets}}
	}
	r.runs = append(r.runs, run)

	if IsDebugEnabled() {
		slog.Debug("chain started", "chain", chain.Name, "run", run.id, "cast", cc.ID, "roots", len(chain.Roots), "targets", len(targets))
	}
	r.poll(run)
	return run
}

// Schedule adds a task that is polled every tick until done but never joined.
// It is polled once immediately.
func (r *Runner) Schedule(cc *CastContext, task Task) {
	b := &backgroundTask{cc: cc, task: task}
	r.pollBackground(b)
	if !b.done {
		r.background = append(r.background, b)
	}
}

// Tick resumes every suspended run and background task once.
func (r *Runner) Tick() {
	now := r.env.Now()

	for _, run := range slices.Clone(r.runs) {
		if run.done {
			continue
		}
		if r.maxLifetime > 0 && now-run.startedAt > r.maxLifetime {
			r.abort(run)
			continue
		}
		r.poll(run)
	}
	for _, b := range slices.Clone(r.background) {
		if !b.done {
			r.pollBackground(b)
		}
	}

	r.runs = slices.DeleteFunc(r.runs, func(run *Run) bool { return run.done })
	r.background = slices.DeleteFunc(r.background, func(b *backgroundTask) bool { return b.done })
}

// poll advances every unfinished root of run and checks the join barrier.
func (r *Runner) poll(run *Run) {
	for i := range run.stacks {
		if run.rootDone[i] {
			continue
		}
		if r.drive(run, i) {
			run.rootDone[i] = true
			run.completed++
		}
	}
	if run.completed == len(run.stacks) {
		r.finish(run)
	}
}

func (r *Runner) finish(run *Run) {
	if run.done {
		return
	}
	run.done = true
	if IsDebugEnabled() {
		slog.Debug("chain completed", "run", run.id, "cast", run.cc.ID)
	}
	if run.onDone != nil {
		r.protect(run, nil, "done", run.onDone)
	}
}

// abort force-completes a run that outlived the watchdog limit.
func (r *Runner) abort(run *Run) {
	chainName := ""
	if run.chain != nil {
		chainName = run.chain.Name
	}
	slog.Warn("chain exceeded lifetime, forcing completion",
		"chain", chainName,
		"run", run.id,
		"cast", run.cc.ID,
		"lifetime", r.maxLifetime)

	for i, stack := range run.stacks {
		for _, f := range stack {
			if a, ok := f.task.(Aborter); ok && f.stage == stageWait {
				r.protect(run, f, "abort", func() { a.Abort(r.env, run.cc) })
			}
		}
		run.stacks[i] = nil
		if !run.rootDone[i] {
			run.rootDone[i] = true
			run.completed++
		}
	}
	r.finish(run)
}

// drive runs root i of run until it suspends or completes. Returns true on completion.
func (r *Runner) drive(run *Run, i int) bool {
	for len(run.stacks[i]) > 0 {
		stack := run.stacks[i]
		f := stack[len(stack)-1]

		if f.stage == stageEnter && !r.enter(run, f) {
			run.stacks[i] = stack[:len(stack)-1]
			continue
		}

		if f.stage == stageWait {
			var (
				out  Targets
				done bool
			)
			if !r.protect(run, f, "poll", func() { out, done = f.task.Poll(r.env, run.cc) }) {
				run.stacks[i] = stack[:len(stack)-1]
				continue
			}
			if !done {
				return false
			}
			f.task = nil
			if run.cc.Cancelled() {
				run.stacks[i] = stack[:len(stack)-1]
				continue
			}
			f.out = out
			f.stage = stageChildren
		}

		// stageChildren
		if len(f.out) == 0 || f.next >= len(f.node.Children) {
			if len(f.out) == 0 && !f.node.IsLeaf() && IsDebugEnabled() {
				slog.Debug("no targets, skipping children", "node", f.id, "label", f.node.Label, "cast", run.cc.ID)
			}
			run.stacks[i] = stack[:len(stack)-1]
			continue
		}
		child := f.node.Children[f.next]
		f.next++
		run.stacks[i] = append(stack, &frame{id: child, in: f.out})
	}
	return true
}

// enter performs node entry: cancellation check, commit, operator invocation.
// Returns false when the node's subtree must end without output.
func (r *Runner) enter(run *Run, f *frame) bool {
	if run.cc.Cancelled() {
		return false
	}
	node, ok := run.chain.Arena.Node(f.id)
	if !ok {
		slog.Warn("effect node missing", "chain", run.chain.Name, "node", f.id)
		return false
	}
	f.node = node

	if IsDebugEnabled() {
		slog.Debug("node entered", "node", f.id, "label", node.Label, "kind", node.Op.kind(), "targets", len(f.in))
	}

	if node.CountsAsCast && run.cc.MarkCommitted() {
		event.Publish(r.env.Bus, event.CastCommitted{
			CastID: run.cc.ID,
			Caster: run.cc.Caster,
			Skill:  run.cc.Skill,
			At:     r.env.Now(),
		})
	}

	var beginErr error
	ok = r.protect(run, f, "invoke", func() {
		switch op := node.Op.(type) {
		case Target:
			out := op.Selector.Select(r.env, run.cc, f.in)
			if op.Augment {
				out = f.in.Union(out)
			}
			f.out = NewTargets(out...)
			f.stage = stageChildren
		case Condition:
			f.out = f.in.Intersect(op.Predicate.Filter(r.env, run.cc, f.in))
			f.stage = stageChildren
		case Mechanic:
			task, err := op.Action.Begin(r.env, run.cc, f.in)
			if err != nil {
				beginErr = err
				return
			}
			if task == nil {
				task = Ready(f.in)
			}
			f.task = task
			f.stage = stageWait
		default:
			beginErr = fmt.Errorf("unknown operator %T", node.Op)
		}
	})
	if beginErr != nil {
		slog.Warn("effect operator failed",
			"stage", "invoke",
			"cast", run.cc.ID,
			"node", f.id,
			"label", node.Label,
			"error", beginErr)
		return false
	}
	return ok
}

// protect runs fn, converting a panic into a logged failure of the node's subtree.
func (r *Runner) protect(run *Run, f *frame, what string, fn func()) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			attrs := []any{"stage", what, "cast", run.cc.ID, "error", p}
			if f != nil {
				label := ""
				if f.node != nil {
					label = f.node.Label
				}
				attrs = append(attrs, "node", f.id, "label", label)
			}
			slog.Warn("effect operator failed", attrs...)
			ok = false
		}
	}()
	fn()
	return true
}

func (r *Runner) pollBackground(b *backgroundTask) {
	ok := func() (ok bool) {
		defer func() {
			if p := recover(); p != nil {
				slog.Warn("background task failed", "cast", b.cc.ID, "error", p)
				ok = false
			}
		}()
		_, b.done = b.task.Poll(r.env, b.cc)
		return true
	}()
	if !ok {
		b.done = true
	}
}

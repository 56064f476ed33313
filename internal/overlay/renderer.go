package overlay

import (
	"context"
	"log/slog"

	"github.com/lenslate/lenslate/internal/block"
)

// Snapshot is one published block set. All blocks share a generation; the
// renderer never mixes blocks from different frames in one pass.
type Snapshot struct {
	Generation uint64
	Blocks     []block.TextBlock
}

// Sink receives render diffs. Implementations must not block; the renderer
// goroutine is the overlay's single mutation context.
type Sink interface {
	PublishDiff(diff RenderDiff)
}

// Renderer owns the render State and feeds diffs to sinks. Snapshots arrive
// through a latest-wins slot: if the renderer lags, intermediate snapshots
// are dropped, never queued; the screen only ever needs the newest one.
type Renderer struct {
	state *State
	in    chan Snapshot
	sinks []Sink
}

// NewRenderer creates a renderer fanning out to the given sinks.
func NewRenderer(sinks ...Sink) *Renderer {
	return &Renderer{
		state: NewState(),
		in:    make(chan Snapshot, 1),
		sinks: sinks,
	}
}

// Publish hands a snapshot to the renderer without blocking, replacing any
// snapshot it hasn't picked up yet.
func (r *Renderer) Publish(s Snapshot) {
	for {
		select {
		case r.in <- s:
			return
		default:
			select {
			case <-r.in: // discard the stale one
			default:
			}
		}
	}
}

// Run consumes snapshots until ctx is done. Must be the only goroutine
// touching the State.
func (r *Renderer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-r.in:
			diff := r.state.Apply(snap.Generation, snap.Blocks)
			if diff.Empty() {
				continue
			}
			slog.Debug("render diff",
				"generation", diff.Generation,
				"removals", len(diff.Removals),
				"draws", len(diff.Texts))
			for _, sink := range r.sinks {
				sink.PublishDiff(diff)
			}
		}
	}
}

package overlay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lenslate/lenslate/internal/block"
)

type collectSink struct {
	mu    sync.Mutex
	diffs []RenderDiff
}

func (c *collectSink) PublishDiff(diff RenderDiff) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diffs = append(c.diffs, diff)
}

func (c *collectSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.diffs)
}

func (c *collectSink) last() RenderDiff {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.diffs[len(c.diffs)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRendererFansOutDiffs(t *testing.T) {
	sink := &collectSink{}
	r := NewRenderer(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Publish(Snapshot{
		Generation: 1,
		Blocks:     []block.TextBlock{renderBlock("a", "hello", 10, 10, 100, 20)},
	})

	waitFor(t, func() bool { return sink.count() == 1 })

	if got := sink.last(); got.Generation != 1 || len(got.Texts) != 1 {
		t.Errorf("diff = %+v, want one text op at generation 1", got)
	}
}

func TestRendererSkipsEmptyDiffs(t *testing.T) {
	sink := &collectSink{}
	r := NewRenderer(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	blocks := []block.TextBlock{renderBlock("a", "hello", 10, 10, 100, 20)}
	r.Publish(Snapshot{Generation: 1, Blocks: blocks})
	waitFor(t, func() bool { return sink.count() == 1 })

	// The same block set again changes nothing; no diff should reach the
	// sink.
	r.Publish(Snapshot{Generation: 2, Blocks: blocks})
	r.Publish(Snapshot{
		Generation: 3,
		Blocks:     []block.TextBlock{renderBlock("b", "world", 10, 100, 100, 20)},
	})

	waitFor(t, func() bool { return sink.count() == 2 })

	if got := sink.last(); got.Generation != 3 {
		t.Errorf("generation = %d, want 3 (empty diff skipped)", got.Generation)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	r := NewRenderer() // no Run loop draining

	done := make(chan struct{})
	go func() {
		for i := uint64(1); i <= 100; i++ {
			r.Publish(Snapshot{Generation: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked without a consumer")
	}

	// Latest-wins: the slot holds the newest snapshot.
	got := <-r.in
	if got.Generation != 100 {
		t.Errorf("slot generation = %d, want 100", got.Generation)
	}
}

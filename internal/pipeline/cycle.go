package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/lenslate/lenslate/internal/block"
	"github.com/lenslate/lenslate/internal/cache"
	apperrors "github.com/lenslate/lenslate/internal/errors"
	"github.com/lenslate/lenslate/internal/frame"
	"github.com/lenslate/lenslate/internal/overlay"
	"github.com/lenslate/lenslate/internal/trace"
)

// nullFrameLogEvery dampens capture-failure logging: the first few failures
// are logged, after that only every Nth, so a hung source does not flood.
const nullFrameLogEvery = 30

// captureLoop grabs frames at the configured rate and offers them to the
// worker through the latest-wins slot.
func (p *Pipeline) captureLoop(ctx context.Context) {
	interval := time.Second
	if p.cfg.CaptureRate > 0 {
		interval = time.Duration(float64(time.Second) / p.cfg.CaptureRate)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var consecutiveNull uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
		}
		if !p.running.Load() {
			continue
		}

		f, err := p.source.Capture()
		if err != nil || f.Empty() {
			consecutiveNull++
			p.nullFrames.Add(1)
			if consecutiveNull <= 3 || consecutiveNull%nullFrameLogEvery == 0 {
				slog.Warn("frame capture failed",
					"error", err,
					"consecutive", consecutiveNull)
			}
			continue
		}
		if consecutiveNull > 0 {
			slog.Info("frame capture recovered", "after", consecutiveNull)
			consecutiveNull = 0
		}

		// Latest-wins: replace a queued frame rather than block behind it.
		for {
			select {
			case p.frameCh <- f:
			default:
				select {
				case <-p.frameCh:
				default:
				}
				continue
			}
			break
		}
	}
}

// processLoop is the single goroutine that runs cycles and applies
// translation resolutions. Serializing both on one loop means block state
// and the pending set never need locking.
func (p *Pipeline) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case f := <-p.frameCh:
			p.runCycle(ctx, f)
		case res := <-p.resolutionCh:
			p.applyResolution(res)
		}
	}
}

// runCycle processes one frame end to end: diff, extract, merge, style,
// resolve, publish.
func (p *Pipeline) runCycle(ctx context.Context, f frame.Frame) {
	ctx, _ = trace.EnsureContext(ctx)
	ctx, span := trace.StartSpan(ctx, "pipeline_cycle")
	defer span.End()
	span.SetAttr("generation", f.Seq)
	p.cycles.Add(1)

	// A capture-region resize makes every prior box meaningless; the
	// matcher must not try to carry identities across it.
	if !p.lastProcessed.Empty() && !p.lastProcessed.Bounds().Eq(f.Bounds()) {
		slog.Info("capture geometry changed, resetting identities",
			"prev", p.lastProcessed.Bounds(), "cur", f.Bounds())
		p.matcher.Reset()
	}

	if p.forceNext.Swap(false) {
		// A language switch wants the current screen re-resolved even when
		// nothing changed visually.
		p.lastProcessed = frame.Frame{}
	}
	if !p.differ.ShouldProcess(p.lastProcessed, f) {
		return
	}
	p.lastProcessed = f
	p.changed.Add(1)

	dets, err := p.engine.Detect(ctx, f)
	if err != nil {
		// Extraction failure keeps the previous overlay on screen; the
		// next changed frame retries naturally.
		p.resolveFails.Add(1)
		slog.Error("text extraction failed",
			"error", err,
			"code", apperrors.CodeOf(err),
			"generation", f.Seq)
		return
	}

	blocks := p.merger.Merge(dets)
	p.matcher.Assign(blocks)
	p.styler.Apply(f, blocks)
	p.resolve(ctx, f.Seq, blocks)
	p.publish(f.Seq, blocks)
}

// resolve fills translations from the cache and issues requests for the
// misses. Requests are de-duplicated on the normalized cache key, so five
// frames carrying the same sentence produce one request.
func (p *Pipeline) resolve(ctx context.Context, gen uint64, blocks []block.TextBlock) {
	langs := p.langs.Get()
	for i := range blocks {
		b := &blocks[i]
		b.SourceLang = langs.Source
		b.TargetLang = langs.Target
		b.Generation = gen

		key := cache.NewKey(b.Text, b.SourceLang, b.TargetLang)
		if translated, ok := p.cache.Get(key); ok {
			b.Translation = translated
			b.Pending = false
			continue
		}

		b.Pending = true
		if _, inflight := p.pending[key]; inflight {
			continue
		}
		p.pending[key] = struct{}{}
		go p.request(ctx, b.ID, gen, key, b.Text)
	}
}

// request runs one translation call and reports back on the resolution
// channel. It runs off the worker goroutine and must not touch pipeline
// state directly.
func (p *Pipeline) request(ctx context.Context, id block.Identity, gen uint64, key cache.Key, text string) {
	translated, err := p.translator.Translate(ctx, text, key.Source, key.Target)
	select {
	case p.resolutionCh <- resolution{id: id, gen: gen, key: key, text: translated, err: err}:
	case <-p.stopCh:
	case <-ctx.Done():
	}
}

// applyResolution folds a completed translation back into the published
// snapshot. The result is always cached; it is applied to the screen only
// if the originating block still exists with the same text, otherwise it is
// a stale result and the display update is skipped.
func (p *Pipeline) applyResolution(res resolution) {
	delete(p.pending, res.key)

	if res.err != nil {
		p.resolveFails.Add(1)
		slog.Warn("translation failed",
			"error", res.err,
			"code", apperrors.CodeOf(res.err),
			"generation", res.gen)
		// The block keeps showing source text; a later occurrence of the
		// same text issues a fresh request.
		p.clearPending(res.key)
		return
	}

	p.cache.Put(res.key, res.text)

	applied := false
	snap := p.published.Update(func(s *overlay.Snapshot) any {
		blocks := cloneBlocks(s.Blocks)
		for i := range blocks {
			b := &blocks[i]
			if cache.NewKey(b.Text, b.SourceLang, b.TargetLang) != res.key {
				continue
			}
			b.Translation = res.text
			b.Pending = false
			applied = true
		}
		if applied {
			s.Blocks = blocks
		}
		return *s
	}).(overlay.Snapshot)

	if !applied {
		// The text left the screen (or changed) while the request was in
		// flight. The cache entry still pays off next time it appears.
		p.staleResults.Add(1)
		slog.Debug("discarding stale translation",
			"generation", res.gen,
			"current", snap.Generation)
		return
	}
	p.emit(snap)
}

// clearPending drops the pending flag on published blocks whose request
// failed, so the overlay shows plain source text instead of a placeholder
// state that will never complete.
func (p *Pipeline) clearPending(key cache.Key) {
	changed := false
	snap := p.published.Update(func(s *overlay.Snapshot) any {
		blocks := cloneBlocks(s.Blocks)
		for i := range blocks {
			b := &blocks[i]
			if b.Pending && cache.NewKey(b.Text, b.SourceLang, b.TargetLang) == key {
				b.Pending = false
				changed = true
			}
		}
		if changed {
			s.Blocks = blocks
		}
		return *s
	}).(overlay.Snapshot)
	if changed {
		p.emit(snap)
	}
}

// cloneBlocks copies a block set before patching. Snapshots already handed
// to the renderer (and the server's replay path) share the guard's backing
// array; patching that array in place would rewrite them after the fact.
func cloneBlocks(blocks []block.TextBlock) []block.TextBlock {
	out := make([]block.TextBlock, len(blocks))
	copy(out, blocks)
	return out
}

// publish records and emits a snapshot for one generation. The stored
// snapshot keeps every block, pending included, so resolutions arriving
// later can still patch and re-emit it.
func (p *Pipeline) publish(gen uint64, blocks []block.TextBlock) {
	snap := overlay.Snapshot{Generation: gen, Blocks: blocks}
	p.published.Set(snap)
	p.emit(snap)
}

// emit hands a snapshot to the publisher, withholding still-pending blocks
// when ShowPending is off. Withheld blocks appear once their translation
// resolves and the patched snapshot is re-emitted.
func (p *Pipeline) emit(snap overlay.Snapshot) {
	if !p.cfg.ShowPending {
		visible := make([]block.TextBlock, 0, len(snap.Blocks))
		for _, b := range snap.Blocks {
			if !b.Pending {
				visible = append(visible, b)
			}
		}
		snap = overlay.Snapshot{Generation: snap.Generation, Blocks: visible}
	}
	p.publishes.Add(1)
	p.publisher.Publish(snap)
}

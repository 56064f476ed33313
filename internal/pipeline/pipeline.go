// Package pipeline drives capture, differencing, extraction, merging,
// styling and translation resolution as one reactive loop. Three activities
// run concurrently: the capture/diff loop on its own ticker, cycle
// processing on a worker goroutine, and per-miss translation goroutines
// whose results come back over a queue. Capture is never blocked by
// processing, and nothing ever waits synchronously on a translation.
package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/lenslate/lenslate/internal/block"
	"github.com/lenslate/lenslate/internal/cache"
	"github.com/lenslate/lenslate/internal/differ"
	"github.com/lenslate/lenslate/internal/extract"
	"github.com/lenslate/lenslate/internal/frame"
	"github.com/lenslate/lenslate/internal/merge"
	"github.com/lenslate/lenslate/internal/overlay"
	"github.com/lenslate/lenslate/internal/style"
	"github.com/lenslate/lenslate/internal/syncx"
	"github.com/lenslate/lenslate/internal/translate"
)

// Config holds the orchestration settings.
type Config struct {
	CaptureRate float64 // Hz
	SourceLang  string
	TargetLang  string
	// ShowPending publishes untranslated blocks with source text as a
	// placeholder instead of withholding them.
	ShowPending bool
}

// LangPair is the active source and target language for resolution.
type LangPair struct {
	Source string
	Target string
}

// Publisher receives finalized snapshots. The overlay renderer implements
// it; tests substitute their own.
type Publisher interface {
	Publish(s overlay.Snapshot)
}

// resolution is a completed translation request delivered back to the
// orchestrator. It carries the originating identity and generation so stale
// results can be recognized and discarded.
type resolution struct {
	id   block.Identity
	gen  uint64
	key  cache.Key
	text string
	err  error
}

// Pipeline coordinates all stages.
type Pipeline struct {
	cfg Config

	source     frame.Source
	differ     *differ.Differ
	engine     extract.Engine
	merger     *merge.Merger
	matcher    *merge.Matcher
	styler     *style.Extractor
	cache      *cache.Cache
	translator translate.Translator
	publisher  Publisher

	// frameCh is a latest-wins slot from the capture loop to the worker:
	// if processing lags, old frames are replaced, never queued.
	frameCh      chan frame.Frame
	resolutionCh chan resolution
	stopCh       chan struct{}

	// Worker-goroutine state. Only the process loop touches these.
	lastProcessed frame.Frame
	pending       map[cache.Key]struct{}

	// published is the last snapshot handed to the publisher; status reads
	// and resolution patches go through the guard.
	published *syncx.RWGuard[overlay.Snapshot]

	// langs is the active language pair; the control surface may swap it at
	// runtime.
	langs *syncx.RWGuard[LangPair]

	running atomic.Bool
	// forceNext makes the worker treat the next frame as changed, bypassing
	// the differ. Set after a language switch so a static screen still
	// re-resolves.
	forceNext atomic.Bool

	cycles       atomic.Uint64
	changed      atomic.Uint64
	publishes    atomic.Uint64
	nullFrames   atomic.Uint64
	staleResults atomic.Uint64
	resolveFails atomic.Uint64
}

// New wires a pipeline from its stages. SetPublisher must be called before
// Start; it is separate because the publisher chain typically ends at the
// server, which itself needs the pipeline for its control surface.
func New(
	cfg Config,
	source frame.Source,
	d *differ.Differ,
	engine extract.Engine,
	merger *merge.Merger,
	matcher *merge.Matcher,
	styler *style.Extractor,
	c *cache.Cache,
	translator translate.Translator,
) *Pipeline {
	p := &Pipeline{
		cfg:          cfg,
		source:       source,
		differ:       d,
		engine:       engine,
		merger:       merger,
		matcher:      matcher,
		styler:       styler,
		cache:        c,
		translator:   translator,
		frameCh:      make(chan frame.Frame, 1),
		resolutionCh: make(chan resolution, 64),
		stopCh:       make(chan struct{}),
		pending:      make(map[cache.Key]struct{}),
		published:    syncx.NewGuard(overlay.Snapshot{}),
		langs:        syncx.NewGuard(LangPair{Source: cfg.SourceLang, Target: cfg.TargetLang}),
	}
	p.running.Store(true)
	return p
}

// SetPublisher binds the snapshot consumer. Must be called before Start.
func (p *Pipeline) SetPublisher(pub Publisher) {
	p.publisher = pub
}

// Start launches the capture and processing loops.
func (p *Pipeline) Start(ctx context.Context) {
	go p.captureLoop(ctx)
	go p.processLoop(ctx)
}

// Stop halts both loops. In-flight translation goroutines finish on their
// own; their results land in a buffered channel nobody drains, which is
// fine for shutdown.
func (p *Pipeline) Stop() {
	close(p.stopCh)
	p.source.Close()
}

// SetRunning pauses or resumes capture. The current overlay persists while
// paused.
func (p *Pipeline) SetRunning(enabled bool) {
	p.running.Store(enabled)
	slog.Info("pipeline running state changed", "enabled", enabled)
}

// Running reports whether capture is active.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// SetLanguages switches the active language pair. The extraction engine
// follows the source language so OCR recognizes the right script. Cache
// keys embed the pair, so no entries are invalidated; the next frame is
// reprocessed even if the screen is static so existing blocks re-resolve
// in the new target.
func (p *Pipeline) SetLanguages(source, target string) {
	if err := p.engine.SetLanguage(source); err != nil {
		// Keep translating with the old recognition language rather than
		// stopping the pipeline over missing traineddata.
		slog.Error("engine language switch failed",
			"error", err,
			"source", source)
	}
	p.langs.Set(LangPair{Source: source, Target: target})
	p.forceNext.Store(true)
	slog.Info("language pair changed", "source", source, "target", target)
}

// Languages returns the active language pair.
func (p *Pipeline) Languages() LangPair {
	return p.langs.Get()
}

// Published returns the last published snapshot.
func (p *Pipeline) Published() overlay.Snapshot {
	return p.published.Get()
}

// ClearCache empties the translation cache. Existing overlay text stays;
// subsequent occurrences re-translate.
func (p *Pipeline) ClearCache() {
	p.cache.Clear()
}

// Stats is a point-in-time view of the pipeline counters.
type Stats struct {
	Running        bool        `json:"running"`
	Cycles         uint64      `json:"cycles"`
	ChangedFrames  uint64      `json:"changed_frames"`
	Publishes      uint64      `json:"publishes"`
	NullFrames     uint64      `json:"null_frames"`
	StaleResults   uint64      `json:"stale_results"`
	ResolveFails   uint64      `json:"resolve_fails"`
	LastGeneration uint64      `json:"last_generation"`
	Blocks         int         `json:"blocks"`
	SourceLang     string      `json:"source_lang"`
	TargetLang     string      `json:"target_lang"`
	Cache          cache.Stats `json:"cache"`
}

// Stats returns the current counters.
func (p *Pipeline) Stats() Stats {
	snap := p.published.Get()
	langs := p.langs.Get()
	return Stats{
		Running:        p.running.Load(),
		Cycles:         p.cycles.Load(),
		ChangedFrames:  p.changed.Load(),
		Publishes:      p.publishes.Load(),
		NullFrames:     p.nullFrames.Load(),
		StaleResults:   p.staleResults.Load(),
		ResolveFails:   p.resolveFails.Load(),
		LastGeneration: snap.Generation,
		Blocks:         len(snap.Blocks),
		SourceLang:     langs.Source,
		TargetLang:     langs.Target,
		Cache:          p.cache.Stats(),
	}
}

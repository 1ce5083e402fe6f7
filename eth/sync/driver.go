// Package sync implements the long-running control loop that arbitrates
// between downloading new blocks, verifying chain segments through the
// execution engine, handling invalid chains via unwind, and emitting
// outbound announcements (spec.md §4.4). Its loop shape — a plain for loop
// with a timed wait (ResultQueue.Pop) and a cooperative quit check at the
// top of every iteration — is grounded on core/rawdb/prunedfreezer.go's
// freeze() loop.
package sync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ezkerrox/chainsync/common"
	"github.com/ezkerrox/chainsync/common/syncwindow"
	"github.com/ezkerrox/chainsync/core"
	"github.com/ezkerrox/chainsync/core/types"
	"github.com/ezkerrox/chainsync/eth/exchange"
	"github.com/ezkerrox/chainsync/log"
	"github.com/ezkerrox/chainsync/metrics"
)

// UnwindHook is invoked at the unwind call site on every InvalidChain
// verdict. The PoW driver's default hook is a no-op — the engine performs
// its own rewind in response to the subsequent update_fork_choice to an
// older valid head — but the call site is preserved so a derived,
// non-PoW-rule-set driver can attach additional invalidation behavior
// (e.g. mempool eviction) without changing the control flow (spec.md §4.4).
type UnwindHook func(point UnwindPoint, badBlock *common.Hash)

// Config tunes the driver's latency/responsiveness knobs. None of these
// affect correctness (spec.md §9's open questions call this out
// explicitly for ResultWait and PruneWindow).
type Config struct {
	// ResultWait is how long a single result-queue pop blocks before the
	// loop re-checks the stop flag. Nominal value: 100ms.
	ResultWait time.Duration
	// PruneWindow is the fork-choice view's sliding window size, floored at
	// syncwindow.MinWindow.
	PruneWindow uint64
	// ResumeLookback is how many recent headers resume() asks the engine
	// for when block_progress is ahead of the persisted head.
	ResumeLookback int
	// Unwind is called at the unwind call site; defaults to a no-op.
	Unwind UnwindHook
}

// DefaultConfig returns the nominal tuning from spec.md.
func DefaultConfig() Config {
	return Config{
		ResultWait:     syncwindow.DefaultResultWait,
		PruneWindow:    syncwindow.MinWindow,
		ResumeLookback: syncwindow.ResumeLookback,
		Unwind:         func(UnwindPoint, *common.Hash) {},
	}
}

// Driver is the long-running control loop of spec.md §4.4.
type Driver struct {
	engine   EngineAdapter
	exchange ExchangeAdapter
	view     *core.ForkChoiceView
	emitter  *AnnouncementEmitter

	cfg Config

	state     atomic.Int32
	stopping  atomic.Bool
	firstSync atomic.Bool
	firstOnce sync.Once

	headHeightGauge metrics.Gauge
	blocksInserted  metrics.Counter
}

// NewDriver builds a Driver over the given engine and exchange adapters.
// A fresh, empty ForkChoiceView is created internally; Run seeds it via
// Resume before the first forward cycle.
func NewDriver(eng EngineAdapter, exch ExchangeAdapter, cfg Config) *Driver {
	if cfg.ResultWait <= 0 {
		cfg.ResultWait = syncwindow.DefaultResultWait
	}
	if cfg.ResumeLookback <= 0 {
		cfg.ResumeLookback = syncwindow.ResumeLookback
	}
	if cfg.Unwind == nil {
		cfg.Unwind = func(UnwindPoint, *common.Hash) {}
	}
	d := &Driver{
		engine:          eng,
		exchange:        exch,
		view:            core.NewForkChoiceView(),
		cfg:             cfg,
		headHeightGauge: metrics.NewRegisteredGauge("chainsync/driver/head", nil),
		blocksInserted:  metrics.NewRegisteredCounter("chainsync/driver/inserted", nil),
	}
	d.firstSync.Store(true)
	d.emitter = NewAnnouncementEmitter(exch)
	return d
}

// State returns the driver's current control-loop state.
func (d *Driver) State() State { return State(d.state.Load()) }

func (d *Driver) setState(s State) { d.state.Store(int32(s)) }

// Stop flips the cooperative shutdown flag. The driver finishes its
// current iteration (including an in-flight verification) and exits.
func (d *Driver) Stop() { d.stopping.Store(true) }

func (d *Driver) isStopping() bool { return d.stopping.Load() }

// isFirstSync reports whether the initial catch-up phase is still ongoing:
// true until the first complete verify cycle finishes, then false
// thereafter until process restart.
func (d *Driver) isFirstSync() bool { return d.firstSync.Load() }

func (d *Driver) completeFirstSync() {
	d.firstOnce.Do(func() { d.firstSync.Store(false) })
}

// Run drives the resume -> forward -> verify -> (announce|unwind) cycle
// until Stop is called or a fatal condition is hit. A nil return means a
// clean, cooperative stop; a non-nil return is always a *FatalError.
func (d *Driver) Run(ctx context.Context) error {
	d.setState(Resuming)
	if _, err := d.Resume(ctx); err != nil {
		return err
	}

	for {
		if d.isStopping() {
			d.setState(Stopping)
			return nil
		}

		d.setState(Forwarding)
		newHeight, err := d.forwardAndInsert(ctx)
		if errors.Is(err, errStopping) {
			d.setState(Stopping)
			return nil
		}
		if err != nil {
			return err
		}
		d.headHeightGauge.Update(int64(newHeight.Number))

		d.setState(Verifying)
		if err := d.verify(ctx, newHeight); err != nil {
			return err
		}
	}
}

// Resume reconciles the fork-choice view with the engine's persisted head
// (spec.md §4.4's "Resume" phase). Called once at startup.
func (d *Driver) Resume(ctx context.Context) (types.ChainHead, error) {
	head, err := d.engine.LastForkChoice(ctx)
	if err != nil {
		return types.ChainHead{}, fatalf("last_fork_choice", err)
	}
	progress, err := d.engine.BlockProgress(ctx)
	if err != nil {
		return types.ChainHead{}, fatalf("block_progress", err)
	}

	d.view.ResetHead(head)

	if err := d.bootstrapExchange(ctx); err != nil {
		return types.ChainHead{}, err
	}

	if head.Number > progress {
		return types.ChainHead{}, &FatalError{Reason: "resume invariant violated: head beyond block_progress"}
	}
	if progress == head.Number {
		return head, nil
	}

	headers, err := d.engine.GetLastHeaders(ctx, d.cfg.ResumeLookback)
	if err != nil {
		return types.ChainHead{}, fatalf("get_last_headers", err)
	}
	for _, h := range headers {
		d.view.Add(h)
	}

	newHeader, td := d.view.Head()
	resumed := types.ChainHead{BlockID: newHeader.ID(), TotalDifficulty: td}
	log.Info("sync: resumed", "height", resumed.Number, "hash", resumed.Hash)
	return resumed, nil
}

// bootstrapExchange hands the exchange the most recent canonical headers so
// it can locate peers' positions relative to this node's chain, per the
// initial_state contract. Called once, at the start of Resume.
func (d *Driver) bootstrapExchange(ctx context.Context) error {
	headers, err := d.engine.GetLastHeaders(ctx, syncwindow.BootstrapLookback)
	if err != nil {
		return fatalf("get_last_headers", err)
	}
	d.exchange.InitialState(headers)
	return nil
}

// forwardAndInsert downloads and inserts blocks above the current
// block_progress until the exchange reports it's caught up, per
// spec.md §4.4's "Forward and insert" phase.
func (d *Driver) forwardAndInsert(ctx context.Context) (NewHeight, error) {
	progress, err := d.engine.BlockProgress(ctx)
	if err != nil {
		return NewHeight{}, fatalf("block_progress", err)
	}
	d.exchange.DownloadBlocks(progress, exchange.ByAnnouncements)
	blockProgress := progress

	for {
		if d.isStopping() {
			d.exchange.StopDownloading()
			return NewHeight{}, errStopping
		}
		if d.exchange.InSync() && blockProgress == d.exchange.CurrentHeight() {
			break
		}

		batch, ok := d.exchange.ResultQueue().Pop(d.cfg.ResultWait)
		if !ok {
			continue // transient empty queue, not an error
		}

		toAnnounce := make([]exchange.BlockAnnouncement, 0, len(batch))
		for _, blk := range batch {
			td := d.view.Add(blk.Header)
			blk.TotalDifficulty = td
			if blk.Number() > blockProgress {
				blockProgress = blk.Number()
			}
			if blk.ToAnnounce {
				toAnnounce = append(toAnnounce, exchange.BlockAnnouncement{
					Number: blk.Number(),
					Hash:   blk.Hash(),
					Body:   blk.Body,
				})
			}
		}

		if err := d.engine.InsertBlocks(ctx, batch); err != nil {
			return NewHeight{}, fatalf("insert_blocks", err)
		}
		d.blocksInserted.Inc(int64(len(batch)))
		d.emitter.AnnounceNewBlock(toAnnounce, d.isFirstSync())
	}

	d.exchange.StopDownloading()
	header, _ := d.view.Head()
	return NewHeight{Number: header.Number, Hash: header.Hash()}, nil
}

// verify dispatches on validate_chain's verdict, per spec.md §4.4's
// "Verify cycle" phase. Exhaustive matching on the verdict sum is a
// correctness requirement; any unmatched case is fatal.
func (d *Driver) verify(ctx context.Context, newHeight NewHeight) error {
	if newHeight.Number == 0 {
		// Empty-DB bootstrap: nothing to verify yet, loop back to forward.
		return nil
	}

	verdict, err := d.engine.ValidateChain(ctx, newHeight.Hash)
	if err != nil {
		return fatalf("validate_chain", err)
	}

	switch {
	case verdict.ValidChain != nil:
		vc := verdict.ValidChain
		if vc.CurrentHead != newHeight.Hash {
			return &FatalError{Reason: "validate_chain returned ValidChain for a different head than requested"}
		}
		if err := d.engine.UpdateForkChoice(ctx, newHeight.Hash); err != nil {
			return fatalf("update_fork_choice", err)
		}
		d.view.Prune(newHeight.Number, d.cfg.PruneWindow)
		d.setState(Announcing)
		d.emitter.AnnounceNewBlockHashes(newHeight, d.isFirstSync())
		d.completeFirstSync()
		return nil

	case verdict.InvalidChain != nil:
		ic := verdict.InvalidChain
		validNum, ok, err := d.engine.GetBlockNum(ctx, ic.LatestValidHead)
		if err != nil {
			return fatalf("get_block_num", err)
		}
		if !ok {
			return &FatalError{Reason: "could not translate InvalidChain.latest_valid_head to a block number"}
		}

		d.setState(Unwinding)
		d.cfg.Unwind(UnwindPoint{Head: ic.LatestValidHead, Number: validNum}, ic.BadBlock)

		if len(ic.BadHeaders) > 0 {
			d.exchange.Accept(exchange.BadHeaders{Hashes: ic.BadHeaders})
		}
		if err := d.engine.UpdateForkChoice(ctx, ic.LatestValidHead); err != nil {
			return fatalf("update_fork_choice", err)
		}
		d.completeFirstSync()
		return nil

	case verdict.ValidationError != nil:
		ve := verdict.ValidationError
		return &FatalError{
			Reason:          "engine could not validate the chain",
			LatestValidHead: &ve.LatestValidHead,
			MissingBlock:    &ve.MissingBlock,
		}

	default:
		return &FatalError{Reason: "validate_chain returned an unrecognized verdict"}
	}
}

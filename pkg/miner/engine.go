package miner

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Common errors.
var (
	ErrAlreadyRunning = errors.New("miner already running")
	ErrNotRunning     = errors.New("miner not running")
)

// Config configures the mining engine.
type Config struct {
	Mode          MiningMode
	BlockTime     time.Duration
	BaseFee       *big.Int
	LastTimestamp uint64
	Now           func() time.Time
}

// Engine owns the mining mode state machine and the virtual clock.
type Engine struct {
	importer BlockImporter
	pool     TxSource
	time     *TimeManager
	baseFee  *big.Int

	mode     MiningMode
	interval time.Duration
	running  bool
	stop     context.CancelFunc
	done     chan struct{}
	wake     chan struct{}
	mu       sync.Mutex

	produce sync.Mutex // held while blocks are produced
}

// NewEngine creates a mining engine.
func NewEngine(importer BlockImporter, pool TxSource, cfg Config) *Engine {
	baseFee := cfg.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	mode := cfg.Mode
	if mode == ModeInterval && cfg.BlockTime <= 0 {
		mode = ModeManual
	}
	return &Engine{
		importer: importer,
		pool:     pool,
		time:     NewTimeManager(cfg.LastTimestamp, cfg.Now),
		baseFee:  new(big.Int).Set(baseFee),
		mode:     mode,
		interval: cfg.BlockTime,
		wake:     make(chan struct{}, 1),
	}
}

// Mode returns the current mining mode.
func (e *Engine) Mode() MiningMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// IsAutomine reports whether every transaction is mined immediately.
func (e *Engine) IsAutomine() bool {
	return e.Mode() == ModeAutomine
}

// SetAutomine switches between automine and manual mining.
func (e *Engine) SetAutomine(enabled bool) {
	mode := ModeManual
	if enabled {
		mode = ModeAutomine
	}
	e.setMode(mode, 0)
}

// SetIntervalMining mines a block every interval; zero switches to manual mining.
func (e *Engine) SetIntervalMining(interval time.Duration) {
	if interval <= 0 {
		e.setMode(ModeManual, 0)
		return
	}
	e.setMode(ModeInterval, interval)
}

// IntervalMining returns the block time when interval mining is active.
func (e *Engine) IntervalMining() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode != ModeInterval {
		return 0, false
	}
	return e.interval, true
}

func (e *Engine) setMode(mode MiningMode, interval time.Duration) {
	e.mu.Lock()
	e.mode = mode
	e.interval = interval
	e.mu.Unlock()

	log.Debug("Mining mode changed", "mode", mode, "interval", interval)

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Time returns the virtual clock.
func (e *Engine) Time() *TimeManager {
	return e.time
}

// CurrentTimestamp returns the current virtual time in seconds.
func (e *Engine) CurrentTimestamp() uint64 {
	return e.time.CurrentTimestamp()
}

// LastTimestamp returns the timestamp of the last mined block.
func (e *Engine) LastTimestamp() uint64 {
	return e.time.LastTimestamp()
}

// SetNextBlockTimestamp fixes the timestamp of the next block.
func (e *Engine) SetNextBlockTimestamp(timestamp uint64) error {
	return e.time.SetNextBlockTimestamp(timestamp)
}

// IncreaseTime moves the clock forward and returns the total offset in seconds.
func (e *Engine) IncreaseTime(seconds uint64) int64 {
	return e.time.IncreaseTime(seconds)
}

// SetTime moves the clock to timestamp.
func (e *Engine) SetTime(timestamp uint64) uint64 {
	return e.time.SetTime(timestamp)
}

// ResetTime aligns the clock with a chain head produced at timestamp.
func (e *Engine) ResetTime(timestamp uint64) {
	e.time.Reset(timestamp)
}

// SetBlockTimestampInterval makes every block advance by exactly seconds.
func (e *Engine) SetBlockTimestampInterval(seconds uint64) {
	e.time.SetBlockTimestampInterval(seconds)
}

// RemoveBlockTimestampInterval clears the timestamp interval.
func (e *Engine) RemoveBlockTimestampInterval() bool {
	return e.time.RemoveBlockTimestampInterval()
}

// Pause runs fn while no block is being produced.
func (e *Engine) Pause(fn func() error) error {
	e.produce.Lock()
	defer e.produce.Unlock()
	return fn()
}

// Mine mines count blocks, moving the clock forward by interval before each one.
func (e *Engine) Mine(ctx context.Context, count uint64, interval time.Duration) error {
	e.produce.Lock()
	defer e.produce.Unlock()

	_, err := e.mine(ctx, count, interval)
	return err
}

// EvmMine mines blocks regardless of the mining mode and returns the numbers
// of the mined blocks, oldest first.
func (e *Engine) EvmMine(ctx context.Context, opts *EvmMineOptions) ([]uint64, error) {
	e.produce.Lock()
	defer e.produce.Unlock()

	count := uint64(1)
	if opts != nil {
		if opts.Blocks != nil {
			count = *opts.Blocks
		}
		if opts.Timestamp != nil {
			if err := e.time.SetNextBlockTimestamp(*opts.Timestamp); err != nil {
				return nil, err
			}
		}
	}
	return e.mine(ctx, count, 0)
}

// mine produces count blocks (caller must hold produce).
func (e *Engine) mine(ctx context.Context, count uint64, interval time.Duration) ([]uint64, error) {
	numbers := []uint64{}
	for i := uint64(0); i < count; i++ {
		if interval > 0 {
			e.time.IncreaseTime(uint64(interval / time.Second))
		}
		number, err := e.mineOne(ctx)
		if err != nil {
			return numbers, err
		}
		numbers = append(numbers, number)
	}
	return numbers, nil
}

// OnTransaction is called after a transaction entered the pool.
func (e *Engine) OnTransaction(ctx context.Context) error {
	if !e.IsAutomine() {
		return nil
	}
	return e.Mine(ctx, 1, 0)
}

// mineOne produces one block with the ready transactions and returns its
// number (caller must hold produce).
func (e *Engine) mineOne(ctx context.Context) (uint64, error) {
	txs, err := e.pool.Ready(e.baseFee)
	if err != nil {
		return 0, err
	}

	timestamp := e.time.NextTimestamp()
	res, err := e.importer.ImportBlock(ctx, timestamp*1000, txs)
	if err != nil {
		return 0, err
	}

	done := make([]common.Hash, 0, len(res.Included)+len(res.Invalid))
	for _, tx := range res.Included {
		done = append(done, tx.Hash())
	}
	for hash, reason := range res.Invalid {
		log.Warn("Dropped invalid transaction", "hash", hash, "err", reason)
		done = append(done, hash)
	}
	e.pool.RemoveAll(done)

	log.Info("Mined block", "number", res.Block.Number(), "hash", res.Block.Hash(), "txs", len(res.Included), "timestamp", timestamp)
	return res.Block.Number(), nil
}

// Start starts the interval mining loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	e.running = true
	e.stop = cancel
	e.done = make(chan struct{})
	e.mu.Unlock()

	go func() {
		defer close(e.done)
		e.Run(ctx)
	}()
	return nil
}

// Stop stops the interval mining loop.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.stop()
	done := e.done
	e.running = false
	e.mu.Unlock()

	<-done
	return nil
}

// Run mines a block every interval while interval mining is enabled. It
// returns when ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		var (
			timer *time.Timer
			tick  <-chan time.Time
		)
		if interval, ok := e.IntervalMining(); ok {
			timer = time.NewTimer(interval)
			tick = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case <-e.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-tick:
			if err := e.Mine(ctx, 1, 0); err != nil && ctx.Err() == nil {
				log.Error("Interval mining failed", "err", err)
			}
		}
	}
}

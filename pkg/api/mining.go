package api

import (
	"context"
	"errors"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/stable-net/anvil-polkadot/pkg/ethrpc"
	"github.com/stable-net/anvil-polkadot/pkg/miner"
)

// maxDurationSeconds is the largest number of seconds a time.Duration holds.
const maxDurationSeconds = uint64(math.MaxInt64 / int64(time.Second))

// toUint64 checks that a quantity fits 64 bits.
func toUint64(name string, v *big.Int) (uint64, error) {
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, newError(KindInvalidParams, "%s %s does not fit 64 bits", name, v)
	}
	return v.Uint64(), nil
}

// toTimestamp checks that a timestamp is below the largest 64 bit value.
func toTimestamp(v *big.Int) (uint64, error) {
	ts, err := toUint64("timestamp", v)
	if err != nil {
		return 0, err
	}
	if ts == math.MaxUint64 {
		return 0, newError(KindInvalidParams, "timestamp %d out of range", ts)
	}
	return ts, nil
}

// toDuration converts a number of seconds into a duration.
func toDuration(name string, v *big.Int) (time.Duration, error) {
	secs, err := toUint64(name, v)
	if err != nil {
		return 0, err
	}
	if secs > maxDurationSeconds {
		return 0, newError(KindInvalidParams, "%s %d seconds out of range", name, secs)
	}
	return time.Duration(secs) * time.Second, nil
}

func (s *Server) mine(ctx context.Context, blocks, interval *big.Int) error {
	count := uint64(1)
	if blocks != nil {
		n, err := toUint64("block count", blocks)
		if err != nil {
			return err
		}
		count = n
	}
	var every time.Duration
	if interval != nil {
		d, err := toDuration("interval", interval)
		if err != nil {
			return err
		}
		every = d
	}

	if err := s.engine.Mine(ctx, count, every); err != nil {
		return wrapError(KindBackend, err)
	}
	return nil
}

func mineOptions(opts *MineOptions) *miner.EvmMineOptions {
	if opts == nil {
		return nil
	}
	return &miner.EvmMineOptions{Timestamp: opts.Timestamp, Blocks: opts.Blocks}
}

func (s *Server) evmMine(ctx context.Context, opts *MineOptions) (interface{}, error) {
	if _, err := s.engine.EvmMine(ctx, mineOptions(opts)); err != nil {
		return nil, mineError(err)
	}
	return "0x0", nil
}

// evmMineDetailed mines like evm_mine and returns the mined blocks with
// their transactions, oldest first.
func (s *Server) evmMineDetailed(ctx context.Context, opts *MineOptions) (interface{}, error) {
	mined, err := s.engine.EvmMine(ctx, mineOptions(opts))
	if err != nil {
		return nil, mineError(err)
	}

	blocks := make([]*ethrpc.RPCBlock, 0, len(mined))
	for _, n := range mined {
		block, err := s.eth.BlockByNumber(rpc.BlockNumber(n))
		if err != nil {
			return nil, rpcError(err)
		}
		if block == nil {
			return nil, newError(KindBlockNotFound, "mined block %d", n)
		}
		blocks = append(blocks, block.RPC(true))
	}
	return blocks, nil
}

func mineError(err error) error {
	if errors.Is(err, miner.ErrTimestampTooLow) {
		return wrapError(KindInvalidParams, err)
	}
	return wrapError(KindBackend, err)
}

func (s *Server) setIntervalMining(interval *big.Int) error {
	d, err := toDuration("interval", interval)
	if err != nil {
		return err
	}
	s.engine.SetIntervalMining(d)
	return nil
}

func (s *Server) getIntervalMining() interface{} {
	interval, ok := s.engine.IntervalMining()
	if !ok {
		return nil
	}
	return uint64(interval / time.Second)
}

func (s *Server) setBlockTimestampInterval(seconds *big.Int) error {
	secs, err := toUint64("interval", seconds)
	if err != nil {
		return err
	}
	s.engine.SetBlockTimestampInterval(secs)
	return nil
}

func (s *Server) setNextBlockTimestamp(timestamp *big.Int) error {
	ts, err := toTimestamp(timestamp)
	if err != nil {
		return err
	}
	if err := s.engine.SetNextBlockTimestamp(ts); err != nil {
		return mineError(err)
	}
	return nil
}

func (s *Server) increaseTime(seconds *big.Int) (interface{}, error) {
	secs, err := toUint64("seconds", seconds)
	if err != nil {
		return nil, err
	}
	return s.engine.IncreaseTime(secs), nil
}

func (s *Server) setTime(timestamp *big.Int) (interface{}, error) {
	ts, err := toTimestamp(timestamp)
	if err != nil {
		return nil, err
	}
	return s.engine.SetTime(ts), nil
}

package api

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/log"

	"github.com/stable-net/anvil-polkadot/pkg/ethrpc"
	"github.com/stable-net/anvil-polkadot/pkg/snapshot"
)

func snapshotError(err error) error {
	if errors.Is(err, snapshot.ErrInvalidDepth) {
		return wrapError(KindInvalidParams, err)
	}
	return wrapError(KindSnapshot, err)
}

func (s *Server) snapshot() (interface{}, error) {
	var id uint64
	err := s.engine.Pause(func() error {
		var err error
		id, err = s.snapshots.Snapshot()
		return err
	})
	if err != nil {
		return nil, snapshotError(err)
	}
	return hexutil.Uint64(id), nil
}

// revert restores snapshot id. Unknown ids report false.
func (s *Server) revert(id *big.Int) (interface{}, error) {
	if id.Sign() < 0 || !id.IsUint64() {
		return false, nil
	}

	var info *snapshot.RevertInfo
	err := s.engine.Pause(func() error {
		var err error
		if info, err = s.snapshots.RevertTo(id.Uint64()); err != nil || info == nil {
			return err
		}
		return s.resync(info)
	})
	if err != nil {
		return nil, snapshotError(err)
	}
	return info != nil, nil
}

func (s *Server) rollback(depth *math.HexOrDecimal64) error {
	n := uint64(1)
	if depth != nil {
		n = uint64(*depth)
	}
	return s.engine.Pause(func() error {
		info, err := s.snapshots.Rollback(n)
		if err != nil {
			return snapshotError(err)
		}
		return s.resync(info)
	})
}

// resync realigns the block caches and the mining clock with the chain head
// after a revert. Cache slots whose replacement block is still referenced
// elsewhere are left alone.
func (s *Server) resync(info *snapshot.RevertInfo) error {
	if info.Reverted > 0 {
		s.blocks.Purge()

		best, err := s.blocks.BlockByNumber(info.Info.BestNumber)
		if err != nil {
			return rpcError(err)
		}
		finalized, err := s.blocks.BlockByNumber(info.Info.FinalizedNumber)
		if err != nil {
			best.Release()
			return rpcError(err)
		}
		s.replaceCached(best, s.blocks.UpdateLatest)
		s.replaceCached(finalized, s.blocks.UpdateFinalized)
	}

	hash, ok := s.client.HashAt(info.Info.BestNumber)
	if !ok {
		return newError(KindBlockNotFound, "best block %d after revert", info.Info.BestNumber)
	}
	timestamp, err := s.eth.RuntimeAPI().Timestamp(hash)
	if err != nil {
		return rpcError(err)
	}
	s.engine.ResetTime(timestamp)

	log.Info("Resynchronized after revert", "reverted", info.Reverted, "best", info.Info.BestNumber, "finalized", info.Info.FinalizedNumber, "timestamp", timestamp)
	return nil
}

func (s *Server) replaceCached(handle *ethrpc.Shared[*ethrpc.Block], update func(*ethrpc.Block)) {
	block, ok := handle.TryUnwrap()
	if !ok {
		handle.Release()
		return
	}
	update(block)
}

// Package snapshot provides snapshot, revert and rollback of chain state.
package snapshot

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/stable-net/anvil-polkadot/pkg/state"
	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

// Common errors.
var (
	ErrNoSuchState  = errors.New("no such state")
	ErrInvalidDepth = errors.New("rollback depth exceeds chain height")
)

// Pool is the transaction pool emptied on every revert.
type Pool interface {
	Clear()
}

// RevertInfo describes the outcome of a revert or rollback.
type RevertInfo struct {
	Reverted uint64
	Info     substrate.Info
}

// Snapshot holds a point-in-time state capture.
type Snapshot struct {
	ID          uint64
	BlockNumber uint64
	BlockHash   common.Hash
	state       *state.Layer
}

// Manager manages chain snapshots.
type Manager struct {
	client *substrate.Client
	pool   Pool

	snapshots map[uint64]*Snapshot
	nextID    uint64

	mu sync.RWMutex
}

// NewManager creates a new snapshot manager.
func NewManager(client *substrate.Client, pool Pool) *Manager {
	return &Manager{
		client:    client,
		pool:      pool,
		snapshots: make(map[uint64]*Snapshot),
	}
}

// Snapshot captures the best block and its state and returns the snapshot id.
func (m *Manager) Snapshot() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := m.client.Info()
	saved, err := m.client.CaptureState(info.BestHash)
	if err != nil {
		return 0, err
	}

	snap := &Snapshot{
		ID:          m.nextID,
		BlockNumber: info.BestNumber,
		BlockHash:   info.BestHash,
		state:       saved,
	}
	m.snapshots[snap.ID] = snap
	m.nextID++

	log.Debug("Created snapshot", "id", snap.ID, "number", snap.BlockNumber, "hash", snap.BlockHash)
	return snap.ID, nil
}

// RevertTo restores the chain to snapshot id. It returns nil without error
// when the snapshot does not exist. The snapshot and every later one are
// consumed.
func (m *Manager) RevertTo(id uint64) (*RevertInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, exists := m.snapshots[id]
	if !exists {
		return nil, nil
	}
	m.consumeLocked(id)

	if !m.client.IsCanonical(snap.BlockHash) {
		return nil, fmt.Errorf("%w: snapshot %d at block %d", ErrNoSuchState, id, snap.BlockNumber)
	}

	reverted, _, err := m.client.RevertBlocks(m.client.BestNumber() - snap.BlockNumber)
	if err != nil {
		return nil, err
	}
	if err := m.client.RestoreState(snap.BlockHash, snap.state); err != nil {
		return nil, err
	}
	m.pool.Clear()

	info := m.client.Info()
	log.Debug("Reverted to snapshot", "id", id, "reverted", reverted, "best", info.BestNumber)
	return &RevertInfo{Reverted: reverted, Info: info}, nil
}

// Rollback removes the depth most recent blocks.
func (m *Manager) Rollback(depth uint64) (*RevertInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if best := m.client.BestNumber(); depth > best {
		return nil, fmt.Errorf("%w: depth %d, height %d", ErrInvalidDepth, depth, best)
	}

	reverted, info, err := m.client.RevertBlocks(depth)
	if err != nil {
		return nil, err
	}
	m.pool.Clear()

	log.Debug("Rolled back", "reverted", reverted, "best", info.BestNumber)
	return &RevertInfo{Reverted: reverted, Info: info}, nil
}

// consumeLocked removes every snapshot with an id >= id (caller must hold lock).
func (m *Manager) consumeLocked(id uint64) {
	for snapID := range m.snapshots {
		if snapID >= id {
			delete(m.snapshots, snapID)
		}
	}
}

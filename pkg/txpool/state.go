package txpool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

// ChainState reads account state at the best block of a client.
type ChainState struct {
	client *substrate.Client
}

// NewChainState creates a StateReader backed by client.
func NewChainState(client *substrate.Client) *ChainState {
	return &ChainState{client: client}
}

// ChainID returns the chain id at the best block.
func (s *ChainState) ChainID() (uint64, error) {
	return s.client.Runtime().ChainID(s.client.BestHash())
}

// Nonce returns the nonce of addr at the best block.
func (s *ChainState) Nonce(addr common.Address) (uint64, error) {
	return s.client.Runtime().Nonce(s.client.BestHash(), addr)
}

// Balance returns the balance of addr at the best block.
func (s *ChainState) Balance(addr common.Address) (*uint256.Int, error) {
	return s.client.Runtime().Balance(s.client.BestHash(), addr)
}

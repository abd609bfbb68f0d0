package api

import (
	"errors"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

// dollars is the native balance granted to accounts that receive code
// before they exist.
var dollars = uint256.NewInt(1_000_000_000_000)

func balanceError(err error) error {
	if errors.Is(err, substrate.ErrBalanceConversion) {
		return wrapError(KindBalanceConversion, err)
	}
	return wrapError(KindBackend, err)
}

// inject runs fn against the best block while no block is being produced.
func (s *Server) inject(fn func(hash common.Hash) error) error {
	return s.engine.Pause(func() error {
		return fn(s.client.BestHash())
	})
}

func (s *Server) setBalance(addr common.Address, value *big.Int) error {
	wei, overflow := uint256.FromBig(value)
	if value.Sign() < 0 || overflow {
		return newError(KindInvalidParams, "balance %s out of range", value)
	}

	return s.inject(func(hash common.Hash) error {
		rt := s.client.Runtime()
		native, dust, err := rt.NewBalanceWithDust(hash, wei)
		if err != nil {
			return balanceError(err)
		}
		id, err := rt.AccountID(hash, addr)
		if err != nil {
			return wrapError(KindBackend, err)
		}
		if err := s.setFreeBalance(hash, id, native); err != nil {
			return err
		}

		info, err := s.backend.ReadReviveAccountInfo(hash, addr)
		if err != nil {
			return wrapError(KindBackend, err)
		}
		if info == nil {
			info = &substrate.ReviveAccountInfo{Kind: substrate.AccountKindEOA}
		}
		if info.Dust == dust {
			return nil
		}
		info.Dust = dust
		return s.backend.InjectReviveAccountInfo(hash, addr, info)
	})
}

// setFreeBalance overwrites the free balance of id and moves total issuance
// by the difference.
func (s *Server) setFreeBalance(hash common.Hash, id substrate.AccountID, free *uint256.Int) error {
	info, err := s.backend.ReadSystemAccountInfo(hash, id)
	if err != nil {
		return wrapError(KindBackend, err)
	}
	if info == nil {
		info = substrate.NewSystemAccountInfo()
	}
	oldFree := info.FreeBalance()
	info.Data.Free = new(uint256.Int).Set(free)
	if err := s.backend.InjectSystemAccountInfo(hash, id, info); err != nil {
		return wrapError(KindBackend, err)
	}

	total, err := s.backend.ReadTotalIssuance(hash)
	if err != nil {
		return wrapError(KindBackend, err)
	}
	if err := s.backend.InjectTotalIssuance(hash, substrate.AdjustIssuance(total, oldFree, free)); err != nil {
		return wrapError(KindBackend, err)
	}
	return nil
}

func (s *Server) setNonce(addr common.Address, nonce *big.Int) error {
	if nonce.Sign() < 0 || !nonce.IsUint64() || nonce.Uint64() > math.MaxUint32 {
		return newError(KindNonceOverflow, "nonce %s does not fit 32 bits", nonce)
	}

	return s.inject(func(hash common.Hash) error {
		id, err := s.client.Runtime().AccountID(hash, addr)
		if err != nil {
			return wrapError(KindBackend, err)
		}
		info, err := s.backend.ReadSystemAccountInfo(hash, id)
		if err != nil {
			return wrapError(KindBackend, err)
		}
		if info == nil {
			info = substrate.NewSystemAccountInfo()
		}
		info.Nonce = uint32(nonce.Uint64())
		return s.backend.InjectSystemAccountInfo(hash, id, info)
	})
}

// setStorageAt writes a slot of a contract. Non-contract accounts are left
// unchanged.
func (s *Server) setStorageAt(addr common.Address, slot *big.Int, value common.Hash) error {
	if slot.Sign() < 0 || slot.BitLen() > 256 {
		return newError(KindInvalidParams, "storage slot %s out of range", slot)
	}

	return s.inject(func(hash common.Hash) error {
		info, err := s.backend.ReadReviveAccountInfo(hash, addr)
		if err != nil {
			return wrapError(KindBackend, err)
		}
		if info == nil || !info.IsContract() {
			return nil
		}
		key := common.BigToHash(slot)
		return s.backend.InjectChildStorage(hash, info.Contract.TrieID, key.Bytes(), value.Bytes())
	})
}

// setCode installs code at addr, turning it into a contract if needed. The
// previous code is removed when nothing else references it.
func (s *Server) setCode(addr common.Address, code []byte) error {
	codeHash := crypto.Keccak256Hash(code)

	return s.inject(func(hash common.Hash) error {
		id, err := s.client.Runtime().AccountID(hash, addr)
		if err != nil {
			return wrapError(KindBackend, err)
		}

		sys, err := s.backend.ReadSystemAccountInfo(hash, id)
		if err != nil {
			return wrapError(KindBackend, err)
		}
		nonce := uint32(0)
		if sys != nil {
			nonce = sys.Nonce
		} else if err := s.setFreeBalance(hash, id, dollars); err != nil {
			return err
		}

		info, err := s.backend.ReadReviveAccountInfo(hash, addr)
		if err != nil {
			return wrapError(KindBackend, err)
		}

		var (
			oldHash     common.Hash
			oldCodeInfo *substrate.CodeInfo
		)
		switch {
		case info == nil:
			info = &substrate.ReviveAccountInfo{
				Kind:     substrate.AccountKindContract,
				Contract: substrate.NewContractInfo(id, nonce, codeHash),
			}
		case !info.IsContract():
			info.Kind = substrate.AccountKindContract
			info.Contract = substrate.NewContractInfo(id, nonce, codeHash)
		default:
			oldHash = info.Contract.CodeHash
			oldCodeInfo, err = s.backend.ReadCodeInfo(hash, oldHash)
			if err != nil {
				return wrapError(KindBackend, err)
			}
			info.Contract.CodeHash = codeHash
		}
		if err := s.backend.InjectReviveAccountInfo(hash, addr, info); err != nil {
			return wrapError(KindBackend, err)
		}

		if oldCodeInfo != nil && oldHash != codeHash {
			if err := s.releaseCode(hash, oldHash, oldCodeInfo); err != nil {
				return err
			}
		}

		codeInfo, err := s.backend.ReadCodeInfo(hash, codeHash)
		if err != nil {
			return wrapError(KindBackend, err)
		}
		switch {
		case codeInfo == nil && oldCodeInfo != nil:
			updated := *oldCodeInfo
			updated.RefCount = 1
			codeInfo = &updated
		case codeInfo == nil:
			codeInfo = substrate.NewCodeInfo(id, len(code))
		case oldHash != codeHash || oldCodeInfo == nil:
			codeInfo.RefCount++
		}
		codeInfo.CodeLen = uint32(len(code))
		codeInfo.CodeType = substrate.CodeTypeEVM

		if err := s.backend.InjectPristineCode(hash, codeHash, code); err != nil {
			return wrapError(KindBackend, err)
		}
		if err := s.backend.InjectCodeInfo(hash, codeHash, codeInfo); err != nil {
			return wrapError(KindBackend, err)
		}
		return nil
	})
}

// releaseCode drops one reference to the code at codeHash and removes the
// code once nothing references it.
func (s *Server) releaseCode(hash, codeHash common.Hash, info *substrate.CodeInfo) error {
	if info.RefCount > 1 {
		released := *info
		released.RefCount--
		if err := s.backend.InjectCodeInfo(hash, codeHash, &released); err != nil {
			return wrapError(KindBackend, err)
		}
		return nil
	}
	if err := s.backend.RemovePristineCode(hash, codeHash); err != nil {
		return wrapError(KindBackend, err)
	}
	if err := s.backend.RemoveCodeInfo(hash, codeHash); err != nil {
		return wrapError(KindBackend, err)
	}
	log.Debug("Removed unreferenced code", "hash", codeHash)
	return nil
}

func (s *Server) setChainID(id uint64) error {
	return s.inject(func(hash common.Hash) error {
		if err := s.backend.InjectChainID(hash, id); err != nil {
			return wrapError(KindBackend, err)
		}
		return nil
	})
}

package substrate

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// RecoverSender returns the sender of tx. Transactions carrying the
// impersonation placeholder signature (r holding the address, s zero)
// resolve to the embedded address without signature verification.
func RecoverSender(signer types.Signer, tx *types.Transaction) (common.Address, error) {
	if addr, ok := ImpersonatedSender(tx); ok {
		return addr, nil
	}
	return types.Sender(signer, tx)
}

// ImpersonatedSender extracts the address of a placeholder signature.
func ImpersonatedSender(tx *types.Transaction) (common.Address, bool) {
	_, r, s := tx.RawSignatureValues()
	if r == nil || s == nil || s.Sign() != 0 || r.Sign() == 0 || r.BitLen() > common.AddressLength*8 {
		return common.Address{}, false
	}
	return common.BigToAddress(r), true
}

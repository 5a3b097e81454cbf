package wallet

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs transactions and messages for one signing wallet. The key is
// loaded from the keystore on every call and never cached.
type Signer struct {
	wallet *Wallet
	ks     KeystoreBackend
}

func NewSigner(w *Wallet, ks KeystoreBackend) *Signer {
	return &Signer{wallet: w, ks: ks}
}

// Address is the signing account.
func (s *Signer) Address() common.Address { return s.wallet.Address }

func (s *Signer) Wallet() *Wallet { return s.wallet }

// SignTx signs tx for chainID with the latest signer the chain supports.
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	key, err := loadKey(s.wallet, s.ks)
	if err != nil {
		return nil, err
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return signed, nil
}

// SignMessage produces an EIP-191 personal_sign signature.
func (s *Signer) SignMessage(message []byte) ([]byte, error) {
	key, err := loadKey(s.wallet, s.ks)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(eip191Hash(message), key)
	if err != nil {
		return nil, fmt.Errorf("signing message: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

package chain

import (
	"context"
	"fmt"
	"math/big"
)

// GasInfo holds current fee data for a chain.
type GasInfo struct {
	GasPrice *big.Int // legacy eth_gasPrice (Wei)
	BaseFee  *big.Int // EIP-1559 base fee (Wei), nil on legacy chains
	TipCap   *big.Int // suggested priority fee (Wei)
	FeeCap   *big.Int // 2*base + tip, or GasPrice on legacy chains
}

// GasPriceDisplay returns the best gas price for display (Gwei) and whether
// the chain supports EIP-1559.
func (g *GasInfo) GasPriceDisplay() (gwei float64, isEIP1559 bool) {
	if g.BaseFee != nil && g.BaseFee.Sign() > 0 {
		return WeiToGwei(g.BaseFee), true
	}
	return WeiToGwei(g.GasPrice), false
}

// GetGasInfo fetches the legacy gas price plus base fee and tip when the
// chain supports EIP-1559.
func (c *EVMClient) GetGasInfo(ctx context.Context) (*GasInfo, error) {
	gp, err := c.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	info := &GasInfo{GasPrice: gp, FeeCap: gp, TipCap: gp}

	head, err := c.HeaderByNumber(ctx, nil)
	if err != nil || head.BaseFee == nil {
		return info, nil
	}
	tip, err := c.SuggestGasTipCap(ctx)
	if err != nil {
		tip = big.NewInt(1_000_000_000)
	}
	info.BaseFee = head.BaseFee
	info.TipCap = tip
	info.FeeCap = new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
	return info, nil
}

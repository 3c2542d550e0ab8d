// Package chain reads on-chain balances from Polygon.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const (
	DefaultRPCURL = "https://polygon-rpc.com"
	// DefaultUSDC is bridged USDC.e on Polygon, the Polymarket collateral.
	DefaultUSDC  = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	usdcDecimals = 6
)

var balanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]

// ErrNotConfigured is returned by a nil BalanceClient.
var ErrNotConfigured = errors.New("chain client not configured")

type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// BalanceClient reads ERC-20 USDC balances.
type BalanceClient struct {
	caller contractCaller
	closer func()
	token  common.Address
}

// Dial connects to a Polygon JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL, usdc string) (*BalanceClient, error) {
	if rpcURL == "" {
		rpcURL = DefaultRPCURL
	}
	if usdc == "" {
		usdc = DefaultUSDC
	}
	if !common.IsHexAddress(usdc) {
		return nil, fmt.Errorf("invalid usdc contract address %q", usdc)
	}
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return &BalanceClient{caller: ec, closer: ec.Close, token: common.HexToAddress(usdc)}, nil
}

// USDCBalance returns the wallet's USDC balance at the latest block.
func (c *BalanceClient) USDCBalance(ctx context.Context, wallet string) (decimal.Decimal, error) {
	if c == nil || c.caller == nil {
		return decimal.Zero, ErrNotConfigured
	}
	if !common.IsHexAddress(wallet) {
		return decimal.Zero, fmt.Errorf("invalid wallet address %q", wallet)
	}
	addr := common.HexToAddress(wallet)

	data := make([]byte, 0, 4+32)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(addr.Bytes(), 32)...)

	token := c.token
	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf %s: %w", addr.Hex(), err)
	}
	if len(out) == 0 {
		return decimal.Zero, fmt.Errorf("balanceOf %s: empty response", addr.Hex())
	}
	return decimal.NewFromBigInt(new(big.Int).SetBytes(out), -usdcDecimals), nil
}

// Close releases the RPC connection.
func (c *BalanceClient) Close() {
	if c != nil && c.closer != nil {
		c.closer()
	}
}

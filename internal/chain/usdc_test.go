package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	msg ethereum.CallMsg
	out []byte
	err error
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.msg = msg
	return f.out, f.err
}

func TestBalanceOfSelector(t *testing.T) {
	assert.Equal(t, "70a08231", hex.EncodeToString(balanceOfSelector))
}

func TestUSDCBalance(t *testing.T) {
	raw := common.LeftPadBytes(big.NewInt(1234567890).Bytes(), 32)
	fc := &fakeCaller{out: raw}
	c := &BalanceClient{caller: fc, token: common.HexToAddress(DefaultUSDC)}

	got, err := c.USDCBalance(context.Background(), "0x7523cafcee7bcf2db9a79d80e0d79b88a9a54c4c")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("1234.56789")), got.String())

	require.NotNil(t, fc.msg.To)
	assert.Equal(t, common.HexToAddress(DefaultUSDC), *fc.msg.To)
	require.Len(t, fc.msg.Data, 36)
	assert.Equal(t, "70a08231", hex.EncodeToString(fc.msg.Data[:4]))
	assert.Equal(t, "7523cafcee7bcf2db9a79d80e0d79b88a9a54c4c", hex.EncodeToString(fc.msg.Data[16:]))
}

func TestUSDCBalance_Errors(t *testing.T) {
	var nilClient *BalanceClient
	_, err := nilClient.USDCBalance(context.Background(), "0x7523cafcee7bcf2db9a79d80e0d79b88a9a54c4c")
	assert.True(t, errors.Is(err, ErrNotConfigured))

	c := &BalanceClient{caller: &fakeCaller{err: errors.New("rpc down")}}
	_, err = c.USDCBalance(context.Background(), "0x7523cafcee7bcf2db9a79d80e0d79b88a9a54c4c")
	assert.ErrorContains(t, err, "rpc down")

	_, err = c.USDCBalance(context.Background(), "not-an-address")
	assert.Error(t, err)
}

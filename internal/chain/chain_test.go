package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testContract = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	testFrom     = "0x1111111111111111111111111111111111111111"
	testTo       = "0x2222222222222222222222222222222222222222"
	testHash     = "0x4e3a3754410177e6937ef1f84bba68ea139e8d1a2258c5f85db9f1cd715a1bdd"
)

// fakeClient serves canned receipts and can fail a set number of times.
type fakeClient struct {
	receipt  *types.Receipt
	err      error
	failures int
	calls    int
}

func (f *fakeClient) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("rpc: transient failure")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.receipt, nil
}

func (f *fakeClient) Close() {}

// transferLog builds a Transfer event log for the given parties and amount.
func transferLog(contract, from, to string, amt *big.Int) *types.Log {
	return &types.Log{
		Address: common.HexToAddress(contract),
		Topics: []common.Hash{
			transferTopic,
			common.BytesToHash(common.LeftPadBytes(common.HexToAddress(from).Bytes(), 32)),
			common.BytesToHash(common.LeftPadBytes(common.HexToAddress(to).Bytes(), 32)),
		},
		Data: common.LeftPadBytes(amt.Bytes(), 32),
	}
}

func newTestVerifier(t *testing.T, client ReceiptClient) *Verifier {
	t.Helper()
	v, err := New(Config{ChainID: 84532, Contract: testContract}, WithClient(client))
	require.NoError(t, err)
	return v
}

func TestNew_RequiresContract(t *testing.T) {
	_, err := New(Config{ChainID: 84532})
	assert.Error(t, err)
}

func TestVerifyTransfer_Match(t *testing.T) {
	client := &fakeClient{receipt: &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs:   []*types.Log{transferLog(testContract, testFrom, testTo, big.NewInt(1500))},
	}}
	v := newTestVerifier(t, client)

	ok, err := v.VerifyTransfer(context.Background(), testHash, testFrom, testTo, big.NewInt(1500))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyTransfer_OverpaymentCounts(t *testing.T) {
	client := &fakeClient{receipt: &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs:   []*types.Log{transferLog(testContract, testFrom, testTo, big.NewInt(2000))},
	}}
	v := newTestVerifier(t, client)

	ok, err := v.VerifyTransfer(context.Background(), testHash, testFrom, testTo, big.NewInt(1500))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyTransfer_Underpayment(t *testing.T) {
	client := &fakeClient{receipt: &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs:   []*types.Log{transferLog(testContract, testFrom, testTo, big.NewInt(100))},
	}}
	v := newTestVerifier(t, client)

	ok, err := v.VerifyTransfer(context.Background(), testHash, testFrom, testTo, big.NewInt(1500))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyTransfer_WrongContractIgnored(t *testing.T) {
	other := "0x9999999999999999999999999999999999999999"
	client := &fakeClient{receipt: &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs:   []*types.Log{transferLog(other, testFrom, testTo, big.NewInt(1500))},
	}}
	v := newTestVerifier(t, client)

	ok, err := v.VerifyTransfer(context.Background(), testHash, testFrom, testTo, big.NewInt(1500))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyTransfer_WrongParties(t *testing.T) {
	client := &fakeClient{receipt: &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs:   []*types.Log{transferLog(testContract, testFrom, "0x3333333333333333333333333333333333333333", big.NewInt(1500))},
	}}
	v := newTestVerifier(t, client)

	ok, err := v.VerifyTransfer(context.Background(), testHash, testFrom, testTo, big.NewInt(1500))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyTransfer_InvalidHash(t *testing.T) {
	client := &fakeClient{}
	v := newTestVerifier(t, client)

	_, err := v.VerifyTransfer(context.Background(), "0xshort", testFrom, testTo, big.NewInt(1))
	assert.ErrorIs(t, err, ErrInvalidTxHash)
	assert.Zero(t, client.calls, "invalid hashes never reach the RPC")
}

func TestVerifyTransfer_Reverted(t *testing.T) {
	client := &fakeClient{receipt: &types.Receipt{Status: types.ReceiptStatusFailed}}
	v := newTestVerifier(t, client)

	_, err := v.VerifyTransfer(context.Background(), testHash, testFrom, testTo, big.NewInt(1))
	assert.ErrorIs(t, err, ErrTxReverted)
}

func TestVerifyTransfer_RetriesTransientRPCErrors(t *testing.T) {
	client := &fakeClient{
		failures: 2,
		receipt: &types.Receipt{
			Status: types.ReceiptStatusSuccessful,
			Logs:   []*types.Log{transferLog(testContract, testFrom, testTo, big.NewInt(1500))},
		},
	}
	v := newTestVerifier(t, client)

	ok, err := v.VerifyTransfer(context.Background(), testHash, testFrom, testTo, big.NewInt(1500))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, client.calls)
}

func TestVerifyTransfer_MissingReceiptNotRetried(t *testing.T) {
	client := &fakeClient{err: ethereum.NotFound}
	v := newTestVerifier(t, client)

	_, err := v.VerifyTransfer(context.Background(), testHash, testFrom, testTo, big.NewInt(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ethereum.NotFound)
	assert.Equal(t, 1, client.calls, "a missing receipt is permanent until resubmission")
}

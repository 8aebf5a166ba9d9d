package lifecycle

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-core/internal/event"
	"deposit-core/internal/model"
	"deposit-core/pkg/address"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/psbtutil"
	"deposit-core/pkg/styx"
	"deposit-core/pkg/utils/lock"
	"deposit-core/pkg/walletrpc"
)

var intent001 = model.DepositIntent{AmountBTC: "0.00100000", AmountSats: 100_000, FeePriority: styx.FeeMedium}

type harness struct {
	api         *fakeAPI
	wallet      *fakeWallet
	broadcaster *fakeBroadcaster
	journal     *MemoryJournal
	reconciler  *fakeReconciler
	locker      *lock.MemoryLock
	coordinator *Coordinator
}

func newLeatherHarness(t *testing.T) *harness {
	t.Helper()
	priv := testKey()
	btcAddr, pkScript := p2wpkh(t, priv)

	h := &harness{
		api: &fakeAPI{
			psbtHex: unsignedPsbtHex(t, pkScript),
			utxos:   []styx.UTXO{{TxID: prevTxID, Vout: 0, Value: 100_000}},
		},
		wallet:      leatherWallet(priv),
		broadcaster: &fakeBroadcaster{},
		journal:     NewMemoryJournal(),
		reconciler:  &fakeReconciler{},
		locker:      lock.NewMemoryLock(),
	}
	session := &fakeSession{s: model.WalletSession{
		SignedIn:       true,
		StacksAddress:  stxAddr,
		BitcoinAddress: btcAddr,
		ActiveProvider: model.ProviderLeather,
	}}
	h.coordinator = NewCoordinator(h.api, session, fakeFees{}, h.locker,
		[]Signer{NewLeatherSigner(h.wallet, h.broadcaster)},
		Config{Network: "mainnet", LockTTL: time.Minute},
		WithJournal(h.journal), WithReconciler(h.reconciler))
	return h
}

func TestConfirmLeatherSuccess(t *testing.T) {
	h := newLeatherHarness(t)

	res, err := h.coordinator.Confirm(context.Background(), intent001)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, "dep-1", res.DepositID)
	assert.Len(t, res.TxID, 64)
	assert.True(t, res.RecordUpdated)
	assert.Equal(t, int64(6), res.FeeRate)
	assert.Equal(t, "Deposit Initiated", res.Notice.Title)
	assert.Equal(t, "Your Bitcoin transaction has been sent successfully with txid: "+res.TxID[:10]+"...", res.Notice.Message)

	// initiated -> broadcast, txid 只写一次
	require.Len(t, h.api.updates, 1)
	assert.Equal(t, styx.UpdateDepositData{BTCTxID: res.TxID, Status: styx.StatusBroadcast}, h.api.updates[0])
	assert.Equal(t, 1, h.broadcaster.calls)

	assert.Equal(t, []State{
		StateIdle, StateCreatingRecord, StatePreparingPsbt, StateAwaitingSignature,
		StateBroadcasting, StateRecordUpdating, StateDone,
	}, h.journal.Path(res.AttemptID))

	row, ok := h.journal.Attempt(res.AttemptID)
	require.True(t, ok)
	assert.Len(t, row.PsbtDigest, 64)
	assert.Equal(t, res.TxID, row.TxID)

	events := h.journal.Events()
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeDepositBroadcast, events[0].Type)
	assert.True(t, events[0].RecordUpdated)

	// prepare 用用户选的档位
	require.Len(t, h.api.prepares, 1)
	assert.Equal(t, styx.FeeMedium, h.api.prepares[0].FeePriority)
	assert.Equal(t, "leather", h.api.prepares[0].WalletProvider)

	// 锁已释放
	ok, err = h.locker.Acquire(context.Background(), lock.AttemptKey(stxAddr), time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConfirmInscriptionsCancelsRecord(t *testing.T) {
	h := newLeatherHarness(t)
	h.api.prepareErr = &styx.APIError{StatusCode: 400, Message: "Cannot spend UTXOs with inscriptions"}

	res, err := h.coordinator.Confirm(context.Background(), intent001)
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrInscriptionsDetected)

	e, _ := errno.As(err)
	assert.Equal(t, "Inscriptions Detected", e.Message)
	assert.Equal(t, "Cannot spend UTXOs with inscriptions", e.Detail)

	assert.Equal(t, StateFailed, res.State)
	require.Len(t, h.api.updates, 1)
	assert.Equal(t, styx.StatusCanceled, h.api.updates[0].Status)
	assert.Zero(t, h.broadcaster.calls)
}

func TestConfirmCompensatesEveryPreBroadcastFailure(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(h *harness)
		wantErr errno.Errno
	}{
		{"execute fails", func(h *harness) { h.api.executeErr = errors.New("Too many small UTXOs to build transaction") }, errno.ErrTooManyUTXOs},
		{"bad psbt", func(h *harness) { h.api.psbtHex = "zz" }, errno.ErrPrepareTransaction},
		{"user rejects", func(h *harness) {
			h.wallet.handler = func(context.Context, string, interface{}, int) (*walletrpc.Envelope, error) {
				return failure(4001, "User rejected the request"), nil
			}
		}, errno.ErrSigningFailed},
		{"wallet unreachable", func(h *harness) {
			h.wallet.handler = func(context.Context, string, interface{}, int) (*walletrpc.Envelope, error) {
				return nil, errors.New("connection refused")
			}
		}, errno.ErrSigningFailed},
		{"broadcast fails", func(h *harness) {
			h.broadcaster.err = errors.New("failed to broadcast transaction: min relay fee not met")
		}, errno.ErrBroadcastFailed},
		{"cancel also fails", func(h *harness) {
			h.api.prepareErr = errors.New("boom")
			h.api.cancelErr = errors.New("backend down")
		}, errno.ErrPrepareTransaction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newLeatherHarness(t)
			tt.mutate(h)

			res, err := h.coordinator.Confirm(context.Background(), intent001)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, StateFailed, res.State)
			assert.Empty(t, res.TxID)

			require.Len(t, h.api.updates, 1, "exactly one cancel attempt")
			assert.Equal(t, styx.StatusCanceled, h.api.updates[0].Status)

			path := h.journal.Path(res.AttemptID)
			require.GreaterOrEqual(t, len(path), 2)
			assert.Equal(t, []State{StateCanceling, StateFailed}, path[len(path)-2:])
		})
	}
}

func TestConfirmCreateFailureHasNothingToCancel(t *testing.T) {
	h := newLeatherHarness(t)
	h.api.createErr = errors.New("503")

	res, err := h.coordinator.Confirm(context.Background(), intent001)
	assert.ErrorIs(t, err, errno.ErrCreateDeposit)
	assert.Equal(t, "Failed to initiate deposit. Please try again.", errno.ErrCreateDeposit.Detail)
	assert.Empty(t, h.api.updates)
	assert.Empty(t, h.api.prepares)
	assert.Equal(t, []State{StateIdle, StateCreatingRecord, StateFailed}, h.journal.Path(res.AttemptID))
}

func TestConfirmNoRetryAfterBroadcast(t *testing.T) {
	h := newLeatherHarness(t)
	h.api.updateErr = errors.New("gateway timeout")

	res, err := h.coordinator.Confirm(context.Background(), intent001)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.False(t, res.RecordUpdated)
	assert.Equal(t, 1, h.broadcaster.calls)
	require.Len(t, h.api.updates, 1)
	assert.Equal(t, styx.StatusBroadcast, h.api.updates[0].Status, "never canceled after broadcast")
	assert.Equal(t, []string{"dep-1:" + res.TxID}, h.reconciler.items)
}

func TestConfirmUnknownProvider(t *testing.T) {
	h := newLeatherHarness(t)
	h.coordinator.session = &fakeSession{s: model.WalletSession{
		SignedIn:       true,
		StacksAddress:  stxAddr,
		BitcoinAddress: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		ActiveProvider: model.ProviderAsigna,
	}}

	_, err := h.coordinator.Confirm(context.Background(), intent001)
	assert.ErrorIs(t, err, errno.ErrNoWalletProvider)
	e, _ := errno.As(err)
	assert.Equal(t, "No compatible wallet provider detected", e.Detail)
	require.Len(t, h.api.updates, 1)
	assert.Equal(t, styx.StatusCanceled, h.api.updates[0].Status)
}

func TestConfirmSingleFlight(t *testing.T) {
	h := newLeatherHarness(t)
	h.api.createGate = make(chan struct{})
	h.api.createEntered = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = h.coordinator.Confirm(context.Background(), intent001)
	}()

	// 第一个已经持有锁, 卡在 createDeposit
	<-h.api.createEntered

	_, err := h.coordinator.Confirm(context.Background(), intent001)
	assert.ErrorIs(t, err, errno.ErrAttemptInFlight)

	close(h.api.createGate)
	wg.Wait()
	assert.NoError(t, firstErr)
	assert.Equal(t, 1, h.api.creates)
}

func TestConfirmCompensatesAfterCallerGoesAway(t *testing.T) {
	h := newLeatherHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.wallet.handler = func(ctx context.Context, method string, params interface{}, n int) (*walletrpc.Envelope, error) {
		cancel()
		return nil, ctx.Err()
	}

	_, err := h.coordinator.Confirm(ctx, intent001)
	require.Error(t, err)
	require.Len(t, h.api.updates, 1)
	assert.Equal(t, styx.StatusCanceled, h.api.updates[0].Status)
	assert.NoError(t, h.api.updateCtxErrs[0], "cancel runs on a live context")
}

func TestConfirmRequiresSession(t *testing.T) {
	h := newLeatherHarness(t)
	h.coordinator.session = &fakeSession{s: model.SignedOut()}

	_, err := h.coordinator.Confirm(context.Background(), intent001)
	assert.ErrorIs(t, err, errno.ErrNotConnected)
	assert.Zero(t, h.api.creates)
}

func TestPreview(t *testing.T) {
	h := newLeatherHarness(t)

	data, err := h.coordinator.Preview(context.Background(), model.DepositIntent{AmountBTC: "0.00500000", AmountSats: 500_000, FeePriority: styx.FeeHigh})
	require.NoError(t, err)
	assert.Equal(t, &model.ConfirmationData{
		DepositAmount:  "0.00500000",
		DepositAddress: "bc1qdeposit",
		STXAddress:     stxAddr,
		OpReturnHex:    "6a14deadbeef",
	}, data)
	assert.Equal(t, styx.FeeMedium, h.api.prepares[0].FeePriority)
	assert.Zero(t, h.api.creates)

	h.api.prepareErr = errors.New("inputType: sh without redeemScript")
	_, err = h.coordinator.Preview(context.Background(), intent001)
	assert.ErrorIs(t, err, errno.ErrUnsupportedAddressType)
}

// --- xverse ---

func newXverseHarness(t *testing.T, handler func(ctx context.Context, method string, params interface{}, n int) (*walletrpc.Envelope, error)) (*harness, string) {
	t.Helper()
	priv := testKey()
	ns, err := address.NestedSegwitFromPubKey(hex.EncodeToString(priv.PubKey().SerializeCompressed()), &chaincfg.MainNetParams)
	require.NoError(t, err)
	p2sh := ns.Address.EncodeAddress()
	require.True(t, strings.HasPrefix(p2sh, "3"))

	h := &harness{
		api: &fakeAPI{
			psbtHex:       emptyPsbtHex(t),
			needsFrontend: true,
			utxos: []styx.UTXO{
				{TxID: prevTxID, Vout: 0, Value: 40_000},
				{TxID: prevTxID, Vout: 1, Value: 70_000},
			},
		},
		wallet:  &fakeWallet{handler: handler},
		journal: NewMemoryJournal(),
		locker:  lock.NewMemoryLock(),
	}
	net, err := address.NetworkByName("mainnet")
	require.NoError(t, err)
	session := &fakeSession{s: model.WalletSession{
		SignedIn:       true,
		StacksAddress:  stxAddr,
		BitcoinAddress: p2sh,
		ActiveProvider: model.ProviderXverse,
	}}
	h.coordinator = NewCoordinator(h.api, session, fakeFees{}, h.locker,
		[]Signer{NewXverseSigner(h.wallet, net)},
		Config{Network: "mainnet"}, WithJournal(h.journal))
	return h, p2sh
}

func TestConfirmXverseP2SHAddsInputs(t *testing.T) {
	priv := testKey()
	pubHex := hex.EncodeToString(priv.PubKey().SerializeCompressed())
	var p2sh string
	var signed xverseSignParams

	h, addr := newXverseHarness(t, func(ctx context.Context, method string, params interface{}, n int) (*walletrpc.Envelope, error) {
		switch method {
		case "wallet_getAccount":
			if n == 1 {
				return failure(walletrpc.CodeAccessDenied, "Access denied"), nil
			}
			return success(map[string]interface{}{"addresses": []map[string]string{
				{"address": "bc1pordinals", "publicKey": "00", "purpose": "ordinals"},
				{"address": p2sh, "publicKey": pubHex, "purpose": "payment"},
			}}), nil
		case "wallet_requestPermissions":
			return success(true), nil
		case "signPsbt":
			signed = params.(xverseSignParams)
			return success(map[string]string{"psbt": signed.Psbt, "txid": strings.Repeat("ab", 32)}), nil
		}
		return failure(-32601, "method not found"), nil
	})

	p2sh = addr

	res, err := h.coordinator.Confirm(context.Background(), intent001)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ab", 32), res.TxID)

	assert.Equal(t, []string{"wallet_getAccount", "wallet_requestPermissions", "wallet_getAccount", "signPsbt"}, h.wallet.methods())
	assert.True(t, signed.Broadcast)
	assert.Equal(t, map[string][]int{p2sh: {0, 1}}, signed.SignInputs)
	assert.Equal(t, []int{0x01, 0x02, 0x03, 0x80}, signed.AllowedSighash)
	assert.True(t, signed.Options.AllowUnknownInputs)

	packet, err := psbtutil.DecodeBase64(signed.Psbt)
	require.NoError(t, err)
	require.Len(t, packet.Inputs, 2)
	assert.Equal(t, int64(70_000), packet.Inputs[1].WitnessUtxo.Value)
	assert.NotEmpty(t, packet.Inputs[0].RedeemScript)
}

func TestConfirmXversePermissionDeclined(t *testing.T) {
	h, _ := newXverseHarness(t, func(ctx context.Context, method string, params interface{}, n int) (*walletrpc.Envelope, error) {
		switch method {
		case "wallet_getAccount":
			return failure(walletrpc.CodeAccessDenied, "Access denied"), nil
		case "wallet_requestPermissions":
			return failure(4001, "User rejected"), nil
		}
		return success(map[string]string{"txid": "never"}), nil
	})

	_, err := h.coordinator.Confirm(context.Background(), intent001)
	require.Error(t, err)
	e, _ := errno.As(err)
	assert.Equal(t, ErrP2SHPublicKey.Detail, e.Detail)
	assert.NotContains(t, h.wallet.methods(), "signPsbt")
	require.Len(t, h.api.updates, 1)
	assert.Equal(t, styx.StatusCanceled, h.api.updates[0].Status)
}

func TestConfirmXverseMissingTxID(t *testing.T) {
	h, _ := newXverseHarness(t, func(ctx context.Context, method string, params interface{}, n int) (*walletrpc.Envelope, error) {
		return success(map[string]string{"psbt": "cHNidP8="}), nil
	})
	h.api.needsFrontend = false

	_, err := h.coordinator.Confirm(context.Background(), intent001)
	require.Error(t, err)
	e, _ := errno.As(err)
	assert.Equal(t, "No transaction ID returned from Xverse", e.Detail)
}

func TestXverseRequiresManualInputConstruction(t *testing.T) {
	mainnet, err := address.NetworkByName("mainnet")
	require.NoError(t, err)
	testnet, err := address.NetworkByName("testnet")
	require.NoError(t, err)

	tests := []struct {
		name    string
		network *address.Network
		addr    string
		flag    bool
		want    bool
	}{
		{"mainnet p2sh", mainnet, "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", true, true},
		{"backend flag unset", mainnet, "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", false, false},
		{"mainnet segwit", mainnet, "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", true, false},
		{"testnet p2sh", testnet, "2N9hLwkSqr1cPQAPxbrGVUjxyjD11G2e1he", true, true},
		{"mainnet p2sh on testnet", testnet, "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewXverseSigner(nil, tt.network)
			assert.Equal(t, tt.want, s.RequiresManualInputConstruction(tt.addr, tt.flag))
		})
	}
	assert.False(t, NewLeatherSigner(nil, nil).RequiresManualInputConstruction("3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", true))
}

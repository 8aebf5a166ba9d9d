package lifecycle

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"deposit-core/internal/model"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/styx"
)

func TestClassifyPreparationError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		provider model.WalletProvider
		want     errno.Errno
	}{
		{"inscriptions", errors.New("Found 2 UTXOs with inscriptions"), model.ProviderLeather, errno.ErrInscriptionsDetected},
		{"small utxos", &styx.APIError{StatusCode: 400, Message: "Too many small UTXOs"}, model.ProviderXverse, errno.ErrTooManyUTXOs},
		{"p2sh leather", errors.New("inputType: sh without redeemScript"), model.ProviderLeather, errno.ErrUnsupportedAddressType},
		{"p2sh xverse", errors.New("P2SH input needs redeem script"), model.ProviderXverse, errno.ErrP2SHAddress},
		{"p2sh other", fmt.Errorf("prepare: %w", errors.New("missing redeem script")), model.ProviderAsigna, errno.ErrP2SHNotSupported},
		{"generic", errors.New("upstream exploded"), model.ProviderLeather, errno.ErrPrepareTransaction},
		{"already classified", errno.ErrNoWalletProvider, model.ProviderLeather, errno.ErrNoWalletProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyPreparationError(tt.err, tt.provider)
			assert.Equal(t, tt.want.Code, got.Code)
		})
	}
}

func TestClassifyKeepsUpstreamMessage(t *testing.T) {
	got := ClassifyPreparationError(&styx.APIError{StatusCode: 422, Message: "Cannot use UTXOs with inscriptions"}, model.ProviderLeather)
	assert.Equal(t, "Cannot use UTXOs with inscriptions", got.Detail)

	got = ClassifyPreparationError(errors.New("upstream exploded"), model.ProviderLeather)
	assert.Equal(t, "upstream exploded", got.Detail)

	got = ClassifyPreparationError(errors.New("P2SH"), model.ProviderLeather)
	assert.Contains(t, got.Detail, "Leather wallet does not support P2SH addresses")
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, CanTransition(StateIdle, StateCreatingRecord))
	assert.True(t, CanTransition(StateCreatingRecord, StateFailed))
	assert.True(t, CanTransition(StateBroadcasting, StateCanceling))
	assert.True(t, CanTransition(StateCanceling, StateFailed))

	assert.False(t, CanTransition(StateCreatingRecord, StateCanceling), "no record to cancel yet")
	assert.False(t, CanTransition(StateRecordUpdating, StateCanceling), "txid exists")
	assert.False(t, CanTransition(StateDone, StateIdle))
	assert.False(t, CanTransition(StateIdle, StateDone))

	assert.True(t, StateDone.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateCanceling.Terminal())
}

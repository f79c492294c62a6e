package events

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"quickex/crypto"
)

func TestDepositEventOmitsSaltAndOwner(t *testing.T) {
	evt := QuickexDeposit{Commitment: [32]byte{0xaa}, Token: "QXT", Amount: big.NewInt(1000), ExpiresAt: 100}.Event()
	require.Equal(t, TypeQuickexDeposit, evt.Type)
	require.Equal(t, "1000", evt.Attributes["amount"])
	require.Equal(t, "100", evt.Attributes["expiresAt"])
	require.NotContains(t, evt.Attributes, "salt")
	require.NotContains(t, evt.Attributes, "owner")
}

func TestPrivateEventsWithholdOwnerAndAmount(t *testing.T) {
	deposit := QuickexDeposit{Commitment: [32]byte{0xbb}, Token: "QXT", Amount: big.NewInt(7), Private: true}.Event()
	require.NotContains(t, deposit.Attributes, "amount")
	require.Equal(t, "QXT", deposit.Attributes["token"])

	owner := [20]byte{0x02}
	public := QuickexRefunded{Owner: owner, Token: "QXT", Amount: big.NewInt(7)}.Event()
	require.Equal(t, crypto.AccountAddress(owner).String(), public.Attributes["owner"])
	require.Equal(t, "7", public.Attributes["amount"])

	private := QuickexRefunded{Owner: owner, Token: "QXT", Amount: big.NewInt(7), Private: true}.Event()
	require.NotContains(t, private.Attributes, "owner")
	require.NotContains(t, private.Attributes, "amount")
	require.Contains(t, private.Attributes, "commitment")
}

func TestBufferFlushesInOrder(t *testing.T) {
	buf := &Buffer{}
	rec := NewRecorder(0)
	buf.Emit(QuickexPrivacyToggled{Enabled: true})
	buf.Emit(QuickexPrivacyToggled{Enabled: false})
	require.Equal(t, 2, buf.Len())
	require.Empty(t, rec.Events())

	buf.Flush(rec)
	require.Equal(t, 0, buf.Len())
	got := rec.Events()
	require.Len(t, got, 2)
	require.Equal(t, "true", got[0].Attributes["enabled"])
	require.Equal(t, "false", got[1].Attributes["enabled"])
}

func TestBufferDiscard(t *testing.T) {
	buf := &Buffer{}
	rec := NewRecorder(0)
	buf.Emit(QuickexRefunded{Amount: big.NewInt(5)})
	buf.Discard()
	buf.Flush(rec)
	require.Empty(t, rec.Events())
}

func TestRecorderLimitAndMulti(t *testing.T) {
	a := NewRecorder(2)
	b := NewRecorder(0)
	m := Multi{a, nil, b}
	for i := uint64(1); i <= 3; i++ {
		m.Emit(QuickexLegacyEscrow{ID: i, Amount: i})
	}
	require.Len(t, a.Events(), 2)
	require.Equal(t, "2", a.Events()[0].Attributes["id"])
	require.Len(t, b.Events(), 3)
}

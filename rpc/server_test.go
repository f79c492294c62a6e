package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"quickex/core"
	qxerrors "quickex/core/errors"
	"quickex/core/events"
	"quickex/crypto"
	"quickex/storage"
)

type testEnv struct {
	node   *core.Node
	server *Server
	http   *httptest.Server
	client *Client
	owner  *crypto.PrivateKey
	other  *crypto.PrivateKey
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	owner, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	other, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node := core.NewNode(db)
	_, err = node.ApplyGenesis(context.Background(), core.Genesis{
		Tokens: []core.GenesisToken{{Symbol: "QXT", Name: "QuickEx Token", Decimals: 6}},
		Balances: []core.GenesisBalance{
			{Account: owner.PubKey().Address().Raw(), Token: "QXT", Amount: big.NewInt(1_000)},
		},
	})
	require.NoError(t, err)

	recorder := events.NewRecorder(16)
	node.SetEmitter(recorder)
	server := NewServer(node, ServerConfig{MaxSkew: time.Minute, ReplayCacheSize: 64, Events: recorder})
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return &testEnv{
		node:   node,
		server: server,
		http:   ts,
		client: NewClient(ts.URL+"/rpc", ts.Client()),
		owner:  owner,
		other:  other,
	}
}

func addr(key *crypto.PrivateKey) string {
	return key.PubKey().Address().String()
}

func requireRPCCode(t *testing.T, err error, code int) *RPCError {
	t.Helper()
	require.Error(t, err)
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr), "expected RPC error, got %v", err)
	require.Equal(t, code, rpcErr.Code, "unexpected error %s", rpcErr.Error())
	return rpcErr
}

func postRaw(t *testing.T, url string, req *RPCRequest) (*http.Response, RPCResponse) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func marshalParam(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var dep CommitmentResult
	err := env.client.Call(ctx, "quickex_deposit", DepositParams{
		Token: "qxt", Amount: "250", Owner: addr(env.owner), Salt: "0x0102",
	}, env.owner, &dep)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dep.Commitment, "0x"))

	var expected CommitmentResult
	require.NoError(t, env.client.Call(ctx, "quickex_createCommitment", ProofParams{
		Owner: addr(env.owner), Amount: "250", Salt: "0102",
	}, nil, &expected))
	require.Equal(t, expected.Commitment, dep.Commitment)

	var st StateResult
	require.NoError(t, env.client.Call(ctx, "quickex_getCommitmentState", CommitmentParams{Commitment: dep.Commitment}, nil, &st))
	require.Equal(t, StateResult{Found: true, Status: "pending"}, st)

	var proof ValidResult
	require.NoError(t, env.client.Call(ctx, "quickex_verifyProofView", ProofParams{
		Owner: addr(env.owner), Amount: "250", Salt: "0102",
	}, nil, &proof))
	require.True(t, proof.Valid)

	// The preimage binds the owner, so another recipient derives a different
	// commitment.
	var withdrawn OKResult
	err = env.client.Call(ctx, "quickex_withdraw", WithdrawParams{
		Amount: "250", To: addr(env.other), Salt: "0102",
	}, env.other, &withdrawn)
	requireRPCCode(t, err, int(qxerrors.CodeCommitmentNotFound))

	err = env.client.Call(ctx, "quickex_withdraw", WithdrawParams{
		Amount: "250", To: addr(env.owner), Salt: "0102",
	}, env.owner, &withdrawn)
	require.NoError(t, err)
	require.True(t, withdrawn.OK)

	require.NoError(t, env.client.Call(ctx, "quickex_getCommitmentState", CommitmentParams{Commitment: dep.Commitment}, nil, &st))
	require.Equal(t, "spent", st.Status)

	var bal BalanceResult
	require.NoError(t, env.client.Call(ctx, "quickex_balance", BalanceParams{Account: addr(env.owner), Token: "QXT"}, nil, &bal))
	require.Equal(t, "1000", bal.Balance)

	var feed EventsResult
	require.NoError(t, env.client.Call(ctx, "quickex_recentEvents", nil, nil, &feed))
	require.Len(t, feed.Events, 2)
	require.Equal(t, events.TypeQuickexDeposit, feed.Events[0].Type)
	require.Equal(t, events.TypeQuickexWithdrawToggled, feed.Events[1].Type)
	require.Less(t, feed.Events[0].Sequence, feed.Events[1].Sequence)
}

func TestContractErrorsMapToCodesAndStatus(t *testing.T) {
	env := newTestEnv(t)

	req := &RPCRequest{JSONRPC: jsonRPCVersion, ID: 1, Method: "quickex_deposit",
		Params: []json.RawMessage{marshalParam(t, DepositParams{Token: "QXT", Amount: "0", Owner: addr(env.owner)})}}
	require.NoError(t, SignRequest(req, env.owner, time.Now()))
	resp, decoded := postRaw(t, env.http.URL, req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	require.Equal(t, int(qxerrors.CodeInvalidAmount), decoded.Error.Code)
	require.Equal(t, "InvalidAmount", decoded.Error.Message)

	// Signed by someone other than the owner being debited.
	req = &RPCRequest{JSONRPC: jsonRPCVersion, ID: 2, Method: "quickex_deposit",
		Params: []json.RawMessage{marshalParam(t, DepositParams{Token: "QXT", Amount: "5", Owner: addr(env.owner)})}}
	require.NoError(t, SignRequest(req, env.other, time.Now()))
	resp, decoded = postRaw(t, env.http.URL, req)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, int(qxerrors.CodeUnauthorized), decoded.Error.Code)

	req = &RPCRequest{JSONRPC: jsonRPCVersion, ID: 3, Method: "quickex_refund",
		Params: []json.RawMessage{marshalParam(t, RefundParams{Commitment: "0x" + strings.Repeat("ab", 32), Caller: addr(env.owner)})}}
	require.NoError(t, SignRequest(req, env.owner, time.Now()))
	resp, decoded = postRaw(t, env.http.URL, req)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, int(qxerrors.CodeCommitmentNotFound), decoded.Error.Code)
	require.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestInsufficientFundsIsInternal(t *testing.T) {
	env := newTestEnv(t)
	err := env.client.Call(context.Background(), "quickex_deposit", DepositParams{
		Token: "QXT", Amount: "5000", Owner: addr(env.owner),
	}, env.owner, nil)
	requireRPCCode(t, err, int(qxerrors.CodeInternalError))

	var st StateResult
	c, cerr := env.server.handleCreateCommitment(context.Background(), &call{params: []json.RawMessage{
		marshalParam(t, ProofParams{Owner: addr(env.owner), Amount: "5000"}),
	}})
	require.NoError(t, cerr)
	require.NoError(t, env.client.Call(context.Background(), "quickex_getCommitmentState",
		CommitmentParams{Commitment: c.(CommitmentResult).Commitment}, nil, &st))
	require.False(t, st.Found)
}

func TestUnsignedMutationRejected(t *testing.T) {
	env := newTestEnv(t)
	req := &RPCRequest{JSONRPC: jsonRPCVersion, ID: 1, Method: "quickex_setPrivacy",
		Params: []json.RawMessage{marshalParam(t, SetPrivacyParams{Owner: addr(env.owner), Enabled: true})}}
	resp, decoded := postRaw(t, env.http.URL, req)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, codeUnauthorized, decoded.Error.Code)
}

func TestForgedSignerRejected(t *testing.T) {
	env := newTestEnv(t)
	req := &RPCRequest{JSONRPC: jsonRPCVersion, ID: 1, Method: "quickex_setPrivacy",
		Params: []json.RawMessage{marshalParam(t, SetPrivacyParams{Owner: addr(env.owner), Enabled: true})}}
	require.NoError(t, SignRequest(req, env.other, time.Now()))
	req.Auth.Signer = addr(env.owner)
	resp, decoded := postRaw(t, env.http.URL, req)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, codeUnauthorized, decoded.Error.Code)
}

func TestTamperedParamsRejected(t *testing.T) {
	env := newTestEnv(t)
	req := &RPCRequest{JSONRPC: jsonRPCVersion, ID: 1, Method: "quickex_setPrivacy",
		Params: []json.RawMessage{marshalParam(t, SetPrivacyParams{Owner: addr(env.owner), Enabled: true})}}
	require.NoError(t, SignRequest(req, env.owner, time.Now()))
	req.Params = []json.RawMessage{marshalParam(t, SetPrivacyParams{Owner: addr(env.owner), Enabled: false})}
	resp, _ := postRaw(t, env.http.URL, req)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestReplayRejected(t *testing.T) {
	env := newTestEnv(t)
	req := &RPCRequest{JSONRPC: jsonRPCVersion, ID: 1, Method: "quickex_setPrivacy",
		Params: []json.RawMessage{marshalParam(t, SetPrivacyParams{Owner: addr(env.owner), Enabled: true})}}
	require.NoError(t, SignRequest(req, env.owner, time.Now()))

	resp, decoded := postRaw(t, env.http.URL, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)

	resp, decoded = postRaw(t, env.http.URL, req)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, codeUnauthorized, decoded.Error.Code)
}

func TestStaleTimestampRejected(t *testing.T) {
	env := newTestEnv(t)
	req := &RPCRequest{JSONRPC: jsonRPCVersion, ID: 1, Method: "quickex_setPrivacy",
		Params: []json.RawMessage{marshalParam(t, SetPrivacyParams{Owner: addr(env.owner), Enabled: true})}}
	require.NoError(t, SignRequest(req, env.owner, time.Now().Add(-time.Hour)))
	resp, _ := postRaw(t, env.http.URL, req)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPrivacyRedactsDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var dep CommitmentResult
	require.NoError(t, env.client.Call(ctx, "quickex_deposit", DepositParams{
		Token: "QXT", Amount: "10", Owner: addr(env.owner), Salt: "aa", Timeout: 3600,
	}, env.owner, &dep))
	require.NoError(t, env.client.Call(ctx, "quickex_setPrivacy", SetPrivacyParams{Owner: addr(env.owner), Enabled: true}, env.owner, nil))

	var privacy PrivacyResult
	require.NoError(t, env.client.Call(ctx, "quickex_getPrivacy", AccountParams{Account: addr(env.owner)}, nil, &privacy))
	require.True(t, privacy.Enabled)

	var details DetailsResult
	require.NoError(t, env.client.Call(ctx, "quickex_getEscrowDetails", DetailsParams{Commitment: dep.Commitment, Caller: addr(env.other)}, nil, &details))
	require.True(t, details.Found)
	require.Nil(t, details.Escrow.Amount)
	require.Nil(t, details.Escrow.Owner)
	require.Equal(t, "QXT", details.Escrow.Token)
	require.NotZero(t, details.Escrow.ExpiresAt)

	require.NoError(t, env.client.Call(ctx, "quickex_getEscrowDetails", DetailsParams{Commitment: dep.Commitment, Caller: addr(env.owner)}, nil, &details))
	require.NotNil(t, details.Escrow.Amount)
	require.Equal(t, "10", *details.Escrow.Amount)
	require.Equal(t, addr(env.owner), *details.Escrow.Owner)

	err := env.client.Call(ctx, "quickex_setPrivacy", SetPrivacyParams{Owner: addr(env.owner), Enabled: true}, env.owner, nil)
	requireRPCCode(t, err, int(qxerrors.CodePrivacyAlreadySet))
}

func TestEventFeedWithholdsPrivateDeposits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.client.Call(ctx, "quickex_setPrivacy", SetPrivacyParams{Owner: addr(env.owner), Enabled: true}, env.owner, nil))
	var dep CommitmentResult
	require.NoError(t, env.client.Call(ctx, "quickex_deposit", DepositParams{
		Token: "QXT", Amount: "10", Owner: addr(env.owner), Salt: "bb",
	}, env.owner, &dep))

	var feed EventsResult
	require.NoError(t, env.client.Call(ctx, "quickex_recentEvents", nil, nil, &feed))
	var deposit map[string]string
	for _, evt := range feed.Events {
		if evt.Type == events.TypeQuickexDeposit && evt.Attributes["commitment"] == dep.Commitment {
			deposit = evt.Attributes
		}
	}
	require.NotNil(t, deposit, "deposit event missing from feed")
	require.NotContains(t, deposit, "owner")
	require.NotContains(t, deposit, "amount")
	for _, v := range deposit {
		require.NotEqual(t, addr(env.owner), v)
	}
}

func TestAdminLifecycleOverRPC(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.client.Call(ctx, "quickex_initialize", InitializeParams{Admin: addr(env.owner)}, env.owner, nil))
	require.NoError(t, env.client.Call(ctx, "quickex_setPaused", SetPausedParams{Caller: addr(env.owner), Paused: true}, env.owner, nil))

	var status ContractStatusResult
	require.NoError(t, env.client.Call(ctx, "quickex_contractStatus", nil, nil, &status))
	require.True(t, status.Paused)
	require.NotNil(t, status.Admin)
	require.Equal(t, addr(env.owner), *status.Admin)
	require.Nil(t, status.CodeHash)

	err := env.client.Call(ctx, "quickex_deposit", DepositParams{Token: "QXT", Amount: "1", Owner: addr(env.owner)}, env.owner, nil)
	requireRPCCode(t, err, int(qxerrors.CodeContractPaused))

	err = env.client.Call(ctx, "quickex_setPaused", SetPausedParams{Caller: addr(env.other), Paused: false}, env.other, nil)
	requireRPCCode(t, err, int(qxerrors.CodeUnauthorized))

	hash := "0x" + strings.Repeat("11", 32)
	require.NoError(t, env.client.Call(ctx, "quickex_upgrade", UpgradeParams{Caller: addr(env.owner), CodeHash: hash}, env.owner, nil))
	require.NoError(t, env.client.Call(ctx, "quickex_contractStatus", nil, nil, &status))
	require.Equal(t, hash, *status.CodeHash)
}

func TestLegacyEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.client.Call(ctx, "quickex_enablePrivacy", EnablePrivacyParams{Account: addr(env.owner), Level: 1}, env.owner, nil))
	require.NoError(t, env.client.Call(ctx, "quickex_enablePrivacy", EnablePrivacyParams{Account: addr(env.owner), Level: 3}, env.owner, nil))
	err := env.client.Call(ctx, "quickex_enablePrivacy", EnablePrivacyParams{Account: addr(env.owner), Level: 4}, env.owner, nil)
	requireRPCCode(t, err, int(qxerrors.CodeInvalidPrivacyLevel))

	var level PrivacyLevelResult
	require.NoError(t, env.client.Call(ctx, "quickex_privacyStatus", AccountParams{Account: addr(env.owner)}, nil, &level))
	require.Equal(t, PrivacyLevelResult{Set: true, Level: 3}, level)

	var history PrivacyHistoryResult
	require.NoError(t, env.client.Call(ctx, "quickex_privacyHistory", AccountParams{Account: addr(env.owner)}, nil, &history))
	require.Equal(t, []uint32{3, 1}, history.History)

	var created CreateEscrowResult
	require.NoError(t, env.client.Call(ctx, "quickex_createEscrow", CreateEscrowParams{From: addr(env.owner), To: addr(env.other), Amount: 42}, env.owner, &created))
	require.Equal(t, uint64(1), created.ID)

	var legacy LegacyEscrowResult
	require.NoError(t, env.client.Call(ctx, "quickex_getLegacyEscrow", LegacyEscrowParams{ID: 1}, nil, &legacy))
	require.True(t, legacy.Found)
	require.Equal(t, addr(env.other), legacy.To)
	require.Equal(t, uint64(42), legacy.Amount)
}

func TestTransportErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.client.Call(ctx, "quickex_nope", nil, nil, nil)
	requireRPCCode(t, err, codeMethodNotFound)

	req := &RPCRequest{JSONRPC: jsonRPCVersion, ID: 1, Method: "quickex_getPrivacy",
		Params: []json.RawMessage{json.RawMessage(`{"account":"x","extra":true}`)}}
	resp, decoded := postRaw(t, env.http.URL, req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, codeInvalidParams, decoded.Error.Code)

	err = env.client.Call(ctx, "quickex_getPrivacy", AccountParams{Account: "not-an-address"}, nil, nil)
	requireRPCCode(t, err, codeInvalidParams)

	var health HealthResult
	require.NoError(t, env.client.Call(ctx, "quickex_healthCheck", nil, nil, &health))
	require.True(t, health.Healthy)

	httpResp, err := http.Get(env.http.URL + "/healthz")
	require.NoError(t, err)
	httpResp.Body.Close()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)
}

func TestRateLimitedClientRejected(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	server := NewServer(core.NewNode(db), ServerConfig{RateLimit: RateLimit{RequestsPerMinute: 1, Burst: 1}})
	handler := server.Router()

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"quickex_healthCheck"}`)
	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body)))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestCallLogsMaskPrivateParams(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	handler := NewServer(core.NewNode(db), ServerConfig{Logger: logger}).Router()

	owner, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	for _, params := range []ProofParams{
		{Owner: addr(owner), Amount: "777", Salt: "c0ffee"},
		{Owner: addr(owner), Amount: "not-a-number", Salt: "c0ffee"},
	} {
		req := &RPCRequest{JSONRPC: jsonRPCVersion, ID: 1, Method: "quickex_createCommitment",
			Params: []json.RawMessage{marshalParam(t, params)}}
		body, err := json.Marshal(req)
		require.NoError(t, err)
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body)))
	}

	out := logs.String()
	require.Contains(t, out, `"msg":"rpc call"`)
	require.Contains(t, out, `"msg":"rpc call failed"`)
	require.Contains(t, out, `"salt":"[REDACTED]"`)
	require.NotContains(t, out, "c0ffee")
	require.NotContains(t, out, "777")
	require.NotContains(t, out, "not-a-number")
	require.NotContains(t, out, addr(owner))
}

func TestCallsAreTraced(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node := core.NewNode(db)
	server := NewServer(node, ServerConfig{Tracer: provider.Tracer("test")})
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	client := NewClient(ts.URL+"/rpc", ts.Client())

	var health HealthResult
	require.NoError(t, client.Call(context.Background(), "quickex_healthCheck", nil, nil, &health))
	err := client.Call(context.Background(), "quickex_getCommitmentState", CommitmentParams{Commitment: "0x00"}, nil, nil)
	requireRPCCode(t, err, codeInvalidParams)

	// Spans end after the response is flushed.
	require.Eventually(t, func() bool { return len(spans.Ended()) == 2 }, time.Second, 5*time.Millisecond)
	ended := spans.Ended()
	require.Equal(t, "quickex_healthCheck", ended[0].Name())
	require.Equal(t, otelcodes.Unset, ended[0].Status().Code)
	require.Equal(t, "quickex_getCommitmentState", ended[1].Name())
	require.Equal(t, otelcodes.Error, ended[1].Status().Code)
}

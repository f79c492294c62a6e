package rpc

import (
	"encoding/json"

	"quickex/core/types"
)

const jsonRPCVersion = "2.0"

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
	// Auth is required on every method that changes state.
	Auth *AuthEnvelope `json:"auth,omitempty"`
}

// AuthEnvelope proves that Signer authorized this exact request.
type AuthEnvelope struct {
	Signer    string `json:"signer"`
	Timestamp int64  `json:"timestamp"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	if e.Data != nil {
		if s, ok := e.Data.(string); ok && s != "" {
			return e.Message + ": " + s
		}
	}
	return e.Message
}

type DepositParams struct {
	Token   string `json:"token"`
	Amount  string `json:"amount"`
	Owner   string `json:"owner"`
	Salt    string `json:"salt"`
	Timeout uint64 `json:"timeout"`
}

type DepositWithCommitmentParams struct {
	From       string `json:"from"`
	Token      string `json:"token"`
	Amount     string `json:"amount"`
	Commitment string `json:"commitment"`
	Timeout    uint64 `json:"timeout"`
}

type WithdrawParams struct {
	Amount string `json:"amount"`
	To     string `json:"to"`
	Salt   string `json:"salt"`
}

type RefundParams struct {
	Commitment string `json:"commitment"`
	Caller     string `json:"caller"`
}

type SetPrivacyParams struct {
	Owner   string `json:"owner"`
	Enabled bool   `json:"enabled"`
}

type AccountParams struct {
	Account string `json:"account"`
}

type DetailsParams struct {
	Commitment string `json:"commitment"`
	Caller     string `json:"caller"`
}

type CommitmentParams struct {
	Commitment string `json:"commitment"`
}

type ProofParams struct {
	Owner      string `json:"owner"`
	Amount     string `json:"amount"`
	Salt       string `json:"salt"`
}

type VerifyCommitmentParams struct {
	Commitment string `json:"commitment"`
	Owner      string `json:"owner"`
	Amount     string `json:"amount"`
	Salt       string `json:"salt"`
}

type InitializeParams struct {
	Admin string `json:"admin"`
}

type SetPausedParams struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

type SetAdminParams struct {
	Caller   string `json:"caller"`
	NewAdmin string `json:"newAdmin"`
}

type UpgradeParams struct {
	Caller   string `json:"caller"`
	CodeHash string `json:"codeHash"`
}

type EnablePrivacyParams struct {
	Account string `json:"account"`
	Level   uint32 `json:"level"`
}

type LegacyEscrowParams struct {
	ID uint64 `json:"id"`
}

type CreateEscrowParams struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type BalanceParams struct {
	Account string `json:"account"`
	Token   string `json:"token"`
}

type CommitmentResult struct {
	Commitment string `json:"commitment"`
}

type OKResult struct {
	OK bool `json:"ok"`
}

type ValidResult struct {
	Valid bool `json:"valid"`
}

type PrivacyResult struct {
	Enabled bool `json:"enabled"`
}

// EscrowViewJSON mirrors quickex.EscrowView. Amount and Owner are null when
// redacted.
type EscrowViewJSON struct {
	Token     string  `json:"token"`
	Amount    *string `json:"amount"`
	Owner     *string `json:"owner"`
	Status    string  `json:"status"`
	CreatedAt uint64  `json:"createdAt"`
	ExpiresAt uint64  `json:"expiresAt"`
}

// DetailsResult carries a nil Escrow when the commitment is unknown.
type DetailsResult struct {
	Found  bool            `json:"found"`
	Escrow *EscrowViewJSON `json:"escrow"`
}

type StateResult struct {
	Found  bool   `json:"found"`
	Status string `json:"status,omitempty"`
}

type ContractStatusResult struct {
	Paused   bool    `json:"paused"`
	Admin    *string `json:"admin"`
	CodeHash *string `json:"codeHash"`
}

type PrivacyLevelResult struct {
	Set   bool   `json:"set"`
	Level uint32 `json:"level"`
}

type PrivacyHistoryResult struct {
	History []uint32 `json:"history"`
}

type CreateEscrowResult struct {
	ID uint64 `json:"id"`
}

type LegacyEscrowResult struct {
	Found  bool   `json:"found"`
	ID     uint64 `json:"id,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Amount uint64 `json:"amount,omitempty"`
}

type HealthResult struct {
	Healthy bool `json:"healthy"`
}

type BalanceResult struct {
	Account string `json:"account"`
	Token   string `json:"token"`
	Balance string `json:"balance"`
}

type EventsResult struct {
	Events []*types.Event `json:"events"`
}

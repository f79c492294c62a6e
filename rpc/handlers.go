package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strings"

	"quickex/core/commitment"
	"quickex/core/types"
	"quickex/crypto"
	"quickex/native/quickex"
)

type call struct {
	params []json.RawMessage
	auth   quickex.Authorizer
	signer [20]byte
}

type method struct {
	// mutating methods require a signed auth envelope.
	mutating bool
	handle   func(ctx context.Context, c *call) (interface{}, error)
}

func (s *Server) methodTable() map[string]method {
	return map[string]method{
		"quickex_deposit":               {mutating: true, handle: s.handleDeposit},
		"quickex_depositWithCommitment": {mutating: true, handle: s.handleDepositWithCommitment},
		"quickex_withdraw":              {mutating: true, handle: s.handleWithdraw},
		"quickex_refund":                {mutating: true, handle: s.handleRefund},
		"quickex_setPrivacy":            {mutating: true, handle: s.handleSetPrivacy},
		"quickex_initialize":            {mutating: true, handle: s.handleInitialize},
		"quickex_setPaused":             {mutating: true, handle: s.handleSetPaused},
		"quickex_setAdmin":              {mutating: true, handle: s.handleSetAdmin},
		"quickex_upgrade":               {mutating: true, handle: s.handleUpgrade},
		"quickex_enablePrivacy":         {mutating: true, handle: s.handleEnablePrivacy},
		"quickex_createEscrow":          {mutating: true, handle: s.handleCreateEscrow},

		"quickex_getPrivacy":         {handle: s.handleGetPrivacy},
		"quickex_getEscrowDetails":   {handle: s.handleGetEscrowDetails},
		"quickex_getCommitmentState": {handle: s.handleGetCommitmentState},
		"quickex_verifyProofView":    {handle: s.handleVerifyProofView},
		"quickex_createCommitment":   {handle: s.handleCreateCommitment},
		"quickex_verifyCommitment":   {handle: s.handleVerifyCommitment},
		"quickex_contractStatus":     {handle: s.handleContractStatus},
		"quickex_privacyStatus":      {handle: s.handlePrivacyStatus},
		"quickex_privacyHistory":     {handle: s.handlePrivacyHistory},
		"quickex_getLegacyEscrow":    {handle: s.handleGetLegacyEscrow},
		"quickex_balance":            {handle: s.handleBalance},
		"quickex_healthCheck":        {handle: s.handleHealthCheck},
		"quickex_recentEvents":       {handle: s.handleRecentEvents},
	}
}

func decodeParams(params []json.RawMessage, dst interface{}) error {
	if len(params) != 1 {
		return invalidParams("expected a single parameter object, got %d", len(params))
	}
	dec := json.NewDecoder(bytes.NewReader(params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidParams("invalid parameter object: %v", err)
	}
	return nil
}

func requireNoParams(params []json.RawMessage) error {
	if len(params) != 0 {
		return invalidParams("no parameters expected")
	}
	return nil
}

func parseAccount(field, value string) ([20]byte, error) {
	acct, err := crypto.ParseAccount(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, invalidParams("%s: %v", field, err)
	}
	return acct, nil
}

// parseAmount accepts any base-10 integer. Range checks belong to the engine
// so callers see the contract error code.
func parseAmount(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, invalidParams("%s: invalid integer", field)
	}
	return amount, nil
}

func parseHex(field, value string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, invalidParams("%s: invalid hex: %v", field, err)
	}
	return raw, nil
}

func parseCommitment(field, value string) ([32]byte, error) {
	c, err := commitment.Parse(value)
	if err != nil {
		return [32]byte{}, invalidParams("%s: %v", field, err)
	}
	return c, nil
}

func formatAccount(acct [20]byte) string {
	return crypto.AccountAddress(acct).String()
}

func (s *Server) handleDeposit(ctx context.Context, c *call) (interface{}, error) {
	var p DepositParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	owner, err := parseAccount("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	salt, err := parseHex("salt", p.Salt)
	if err != nil {
		return nil, err
	}
	var out [32]byte
	err = s.node.Invoke(ctx, c.auth, func(e *quickex.Engine) error {
		var derr error
		out, derr = e.Deposit(p.Token, amount, owner, salt, p.Timeout)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return CommitmentResult{Commitment: commitment.Hex(out)}, nil
}

func (s *Server) handleDepositWithCommitment(ctx context.Context, c *call) (interface{}, error) {
	var p DepositWithCommitmentParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	from, err := parseAccount("from", p.From)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	cm, err := parseCommitment("commitment", p.Commitment)
	if err != nil {
		return nil, err
	}
	err = s.node.Invoke(ctx, c.auth, func(e *quickex.Engine) error {
		return e.DepositWithCommitment(from, p.Token, amount, cm, p.Timeout)
	})
	if err != nil {
		return nil, err
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleWithdraw(ctx context.Context, c *call) (interface{}, error) {
	var p WithdrawParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	to, err := parseAccount("to", p.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	salt, err := parseHex("salt", p.Salt)
	if err != nil {
		return nil, err
	}
	var ok bool
	err = s.node.Invoke(ctx, c.auth, func(e *quickex.Engine) error {
		var werr error
		ok, werr = e.Withdraw(amount, to, salt)
		return werr
	})
	if err != nil {
		return nil, err
	}
	return OKResult{OK: ok}, nil
}

func (s *Server) handleRefund(ctx context.Context, c *call) (interface{}, error) {
	var p RefundParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	cm, err := parseCommitment("commitment", p.Commitment)
	if err != nil {
		return nil, err
	}
	caller, err := parseAccount("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	if err := s.node.Invoke(ctx, c.auth, func(e *quickex.Engine) error {
		return e.Refund(cm, caller)
	}); err != nil {
		return nil, err
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleSetPrivacy(ctx context.Context, c *call) (interface{}, error) {
	var p SetPrivacyParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	owner, err := parseAccount("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	if err := s.node.Invoke(ctx, c.auth, func(e *quickex.Engine) error {
		return e.SetPrivacy(owner, p.Enabled)
	}); err != nil {
		return nil, err
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleGetPrivacy(ctx context.Context, c *call) (interface{}, error) {
	var p AccountParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	acct, err := parseAccount("account", p.Account)
	if err != nil {
		return nil, err
	}
	var enabled bool
	err = s.node.View(ctx, func(e *quickex.Engine) error {
		var verr error
		enabled, verr = e.GetPrivacy(acct)
		return verr
	})
	if err != nil {
		return nil, err
	}
	return PrivacyResult{Enabled: enabled}, nil
}

func escrowViewJSON(view *quickex.EscrowView) *EscrowViewJSON {
	out := &EscrowViewJSON{
		Token:     view.Token,
		Status:    view.Status.String(),
		CreatedAt: view.CreatedAt,
		ExpiresAt: view.ExpiresAt,
	}
	if view.Amount != nil {
		amount := view.Amount.String()
		out.Amount = &amount
	}
	if view.Owner != nil {
		owner := formatAccount(*view.Owner)
		out.Owner = &owner
	}
	return out
}

func (s *Server) handleGetEscrowDetails(ctx context.Context, c *call) (interface{}, error) {
	var p DetailsParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	cm, err := parseCommitment("commitment", p.Commitment)
	if err != nil {
		return nil, err
	}
	caller, err := parseAccount("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	var view *quickex.EscrowView
	err = s.node.View(ctx, func(e *quickex.Engine) error {
		var verr error
		view, verr = e.GetEscrowDetails(cm, caller)
		return verr
	})
	if err != nil {
		return nil, err
	}
	if view == nil {
		return DetailsResult{}, nil
	}
	return DetailsResult{Found: true, Escrow: escrowViewJSON(view)}, nil
}

func (s *Server) handleGetCommitmentState(ctx context.Context, c *call) (interface{}, error) {
	var p CommitmentParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	cm, err := parseCommitment("commitment", p.Commitment)
	if err != nil {
		return nil, err
	}
	var (
		status quickex.EscrowStatus
		found  bool
	)
	err = s.node.View(ctx, func(e *quickex.Engine) error {
		var verr error
		status, found, verr = e.GetCommitmentState(cm)
		return verr
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return StateResult{}, nil
	}
	return StateResult{Found: true, Status: status.String()}, nil
}

func (s *Server) handleVerifyProofView(ctx context.Context, c *call) (interface{}, error) {
	var p ProofParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	owner, err := parseAccount("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	salt, err := parseHex("salt", p.Salt)
	if err != nil {
		return nil, err
	}
	var valid bool
	err = s.node.View(ctx, func(e *quickex.Engine) error {
		var verr error
		valid, verr = e.VerifyProofView(amount, salt, owner)
		return verr
	})
	if err != nil {
		return nil, err
	}
	return ValidResult{Valid: valid}, nil
}

func (s *Server) handleCreateCommitment(ctx context.Context, c *call) (interface{}, error) {
	var p ProofParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	owner, err := parseAccount("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	salt, err := parseHex("salt", p.Salt)
	if err != nil {
		return nil, err
	}
	out, err := commitment.Create(owner, amount, salt)
	if err != nil {
		return nil, err
	}
	return CommitmentResult{Commitment: commitment.Hex(out)}, nil
}

func (s *Server) handleVerifyCommitment(ctx context.Context, c *call) (interface{}, error) {
	var p VerifyCommitmentParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	cm, err := parseCommitment("commitment", p.Commitment)
	if err != nil {
		return nil, err
	}
	owner, err := parseAccount("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	salt, err := parseHex("salt", p.Salt)
	if err != nil {
		return nil, err
	}
	return ValidResult{Valid: commitment.Verify(cm, owner, amount, salt)}, nil
}

func (s *Server) handleInitialize(ctx context.Context, c *call) (interface{}, error) {
	var p InitializeParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	admin, err := parseAccount("admin", p.Admin)
	if err != nil {
		return nil, err
	}
	if err := s.node.Invoke(ctx, c.auth, func(e *quickex.Engine) error {
		return e.Initialize(admin)
	}); err != nil {
		return nil, err
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleSetPaused(ctx context.Context, c *call) (interface{}, error) {
	var p SetPausedParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	caller, err := parseAccount("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	if err := s.node.Invoke(ctx, c.auth, func(e *quickex.Engine) error {
		return e.SetPaused(caller, p.Paused)
	}); err != nil {
		return nil, err
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleSetAdmin(ctx context.Context, c *call) (interface{}, error) {
	var p SetAdminParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	caller, err := parseAccount("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	next, err := parseAccount("newAdmin", p.NewAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.node.Invoke(ctx, c.auth, func(e *quickex.Engine) error {
		return e.SetAdmin(caller, next)
	}); err != nil {
		return nil, err
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleUpgrade(ctx context.Context, c *call) (interface{}, error) {
	var p UpgradeParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	caller, err := parseAccount("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	raw, err := parseHex("codeHash", p.CodeHash)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, invalidParams("codeHash: expected 32 bytes, got %d", len(raw))
	}
	var hash [32]byte
	copy(hash[:], raw)
	if err := s.node.Invoke(ctx, c.auth, func(e *quickex.Engine) error {
		return e.Upgrade(caller, hash)
	}); err != nil {
		return nil, err
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handleContractStatus(ctx context.Context, c *call) (interface{}, error) {
	if err := requireNoParams(c.params); err != nil {
		return nil, err
	}
	var out ContractStatusResult
	err := s.node.View(ctx, func(e *quickex.Engine) error {
		paused, err := e.IsPaused()
		if err != nil {
			return err
		}
		out.Paused = paused
		admin, ok, err := e.GetAdmin()
		if err != nil {
			return err
		}
		if ok {
			formatted := formatAccount(admin)
			out.Admin = &formatted
		}
		hash, ok, err := e.CodeHash()
		if err != nil {
			return err
		}
		if ok {
			formatted := "0x" + hex.EncodeToString(hash[:])
			out.CodeHash = &formatted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleEnablePrivacy(ctx context.Context, c *call) (interface{}, error) {
	var p EnablePrivacyParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	acct, err := parseAccount("account", p.Account)
	if err != nil {
		return nil, err
	}
	if err := s.node.Invoke(ctx, c.auth, func(e *quickex.Engine) error {
		return e.EnablePrivacy(acct, p.Level)
	}); err != nil {
		return nil, err
	}
	return OKResult{OK: true}, nil
}

func (s *Server) handlePrivacyStatus(ctx context.Context, c *call) (interface{}, error) {
	var p AccountParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	acct, err := parseAccount("account", p.Account)
	if err != nil {
		return nil, err
	}
	var out PrivacyLevelResult
	err = s.node.View(ctx, func(e *quickex.Engine) error {
		var verr error
		out.Level, out.Set, verr = e.PrivacyStatus(acct)
		return verr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handlePrivacyHistory(ctx context.Context, c *call) (interface{}, error) {
	var p AccountParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	acct, err := parseAccount("account", p.Account)
	if err != nil {
		return nil, err
	}
	var history []uint32
	err = s.node.View(ctx, func(e *quickex.Engine) error {
		var verr error
		history, verr = e.PrivacyHistory(acct)
		return verr
	})
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []uint32{}
	}
	return PrivacyHistoryResult{History: history}, nil
}

func (s *Server) handleCreateEscrow(ctx context.Context, c *call) (interface{}, error) {
	var p CreateEscrowParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	from, err := parseAccount("from", p.From)
	if err != nil {
		return nil, err
	}
	to, err := parseAccount("to", p.To)
	if err != nil {
		return nil, err
	}
	var id uint64
	err = s.node.Invoke(ctx, c.auth, func(e *quickex.Engine) error {
		var cerr error
		id, cerr = e.CreateEscrow(from, to, p.Amount)
		return cerr
	})
	if err != nil {
		return nil, err
	}
	return CreateEscrowResult{ID: id}, nil
}

func (s *Server) handleGetLegacyEscrow(ctx context.Context, c *call) (interface{}, error) {
	var p LegacyEscrowParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	var (
		record *quickex.LegacyEscrow
		found  bool
	)
	err := s.node.View(ctx, func(e *quickex.Engine) error {
		var verr error
		record, found, verr = e.LegacyEscrow(p.ID)
		return verr
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return LegacyEscrowResult{}, nil
	}
	return LegacyEscrowResult{
		Found:  true,
		ID:     record.ID,
		From:   formatAccount(record.From),
		To:     formatAccount(record.To),
		Amount: record.Amount,
	}, nil
}

func (s *Server) handleBalance(ctx context.Context, c *call) (interface{}, error) {
	var p BalanceParams
	if err := decodeParams(c.params, &p); err != nil {
		return nil, err
	}
	acct, err := parseAccount("account", p.Account)
	if err != nil {
		return nil, err
	}
	token := strings.ToUpper(strings.TrimSpace(p.Token))
	balance, err := s.node.Balance(ctx, acct, token)
	if err != nil {
		return nil, err
	}
	return BalanceResult{Account: formatAccount(acct), Token: token, Balance: balance.String()}, nil
}

func (s *Server) handleHealthCheck(ctx context.Context, c *call) (interface{}, error) {
	if err := requireNoParams(c.params); err != nil {
		return nil, err
	}
	healthy := false
	err := s.node.View(ctx, func(e *quickex.Engine) error {
		healthy = e.HealthCheck()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return HealthResult{Healthy: healthy}, nil
}

func (s *Server) handleRecentEvents(ctx context.Context, c *call) (interface{}, error) {
	if err := requireNoParams(c.params); err != nil {
		return nil, err
	}
	if s.events == nil {
		return nil, invalidParams("event feed disabled")
	}
	evts := s.events.Events()
	if evts == nil {
		evts = []*types.Event{}
	}
	return EventsResult{Events: evts}, nil
}

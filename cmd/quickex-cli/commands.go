package main

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"quickex/core/commitment"
	"quickex/crypto"
	"quickex/rpc"
)

const callTimeout = 30 * time.Second

type rpcCaller interface {
	Call(ctx context.Context, method string, params interface{}, key *crypto.PrivateKey, out interface{}) error
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func printError(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func printJSON(stdout, stderr io.Writer, v interface{}) int {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return printError(stderr, err)
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}

func call(method string, params interface{}, key *crypto.PrivateKey, out interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return newClient().Call(ctx, method, params, key, out)
}

func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return false
	}
	return true
}

func required(values map[string]string) error {
	for name, value := range values {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("--%s is required", name)
		}
	}
	return nil
}

func runGenerateKey(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("generate-key", stderr)
	out := fs.String("out", "quickex.key.json", "keystore output path")
	force := fs.Bool("force", false, "replace an existing keystore file")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err)
	}
	pass, err := passSource.Get()
	if err != nil {
		return printError(stderr, err)
	}
	account, err := crypto.WriteKeystore(*out, key, pass, *force)
	if errors.Is(err, crypto.ErrKeystoreExists) {
		return printError(stderr, fmt.Errorf("%w (pass --force to replace it)", err))
	}
	if err != nil {
		return printError(stderr, err)
	}
	fmt.Fprintf(stdout, "Saved keystore to %s\n", *out)
	fmt.Fprintf(stdout, "Address: %s\n", account.String())
	return 0
}

func runCommitment(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("commitment", stderr)
	owner := fs.String("owner", "", "owner address")
	amount := fs.String("amount", "", "escrow amount")
	salt := fs.String("salt", "", "hex salt")
	verify := fs.String("verify", "", "optional commitment to check against")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := required(map[string]string{"owner": *owner, "amount": *amount}); err != nil {
		return printError(stderr, err)
	}
	account, err := crypto.ParseAccount(*owner)
	if err != nil {
		return printError(stderr, err)
	}
	value, ok := new(big.Int).SetString(strings.TrimSpace(*amount), 10)
	if !ok {
		return printError(stderr, fmt.Errorf("invalid amount %q", *amount))
	}
	rawSalt, err := decodeHex(*salt)
	if err != nil {
		return printError(stderr, err)
	}
	if *verify != "" {
		expected, err := commitment.Parse(*verify)
		if err != nil {
			return printError(stderr, err)
		}
		return printJSON(stdout, stderr, rpc.ValidResult{Valid: commitment.Verify(expected, account, value, rawSalt)})
	}
	c, err := commitment.Create(account, value, rawSalt)
	if err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, stderr, rpc.CommitmentResult{Commitment: commitment.Hex(c)})
}

func decodeHex(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex salt: %w", err)
	}
	return raw, nil
}

func runDeposit(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("deposit", stderr)
	keyPath := fs.String("key", "", "owner keystore")
	token := fs.String("token", "", "token symbol")
	amount := fs.String("amount", "", "amount to escrow")
	salt := fs.String("salt", "", "hex salt; a random 32-byte salt is generated when empty")
	timeout := fs.Duration("timeout", 0, "refund window, e.g. 24h; zero never expires")
	precomputed := fs.String("commitment", "", "deposit against a precomputed commitment")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := required(map[string]string{"key": *keyPath, "token": *token, "amount": *amount}); err != nil {
		return printError(stderr, err)
	}
	if *timeout < 0 {
		return printError(stderr, fmt.Errorf("--timeout must not be negative"))
	}
	key, err := loadKey(*keyPath)
	if err != nil {
		return printError(stderr, err)
	}
	self := key.PubKey().Address().String()
	seconds := uint64(timeout.Seconds())

	if *precomputed != "" {
		params := rpc.DepositWithCommitmentParams{From: self, Token: *token, Amount: *amount, Commitment: *precomputed, Timeout: seconds}
		if err := call("quickex_depositWithCommitment", params, key, nil); err != nil {
			return printError(stderr, err)
		}
		return printJSON(stdout, stderr, rpc.CommitmentResult{Commitment: *precomputed})
	}

	saltHex := strings.TrimPrefix(strings.TrimSpace(*salt), "0x")
	if saltHex == "" {
		var buf [32]byte
		if _, err := crand.Read(buf[:]); err != nil {
			return printError(stderr, err)
		}
		saltHex = hex.EncodeToString(buf[:])
	}
	var result rpc.CommitmentResult
	params := rpc.DepositParams{Token: *token, Amount: *amount, Owner: self, Salt: saltHex, Timeout: seconds}
	if err := call("quickex_deposit", params, key, &result); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, stderr, struct {
		Commitment string `json:"commitment"`
		Salt       string `json:"salt"`
	}{Commitment: result.Commitment, Salt: "0x" + saltHex})
}

func runWithdraw(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("withdraw", stderr)
	keyPath := fs.String("key", "", "recipient keystore")
	amount := fs.String("amount", "", "escrowed amount")
	salt := fs.String("salt", "", "hex salt used at deposit")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := required(map[string]string{"key": *keyPath, "amount": *amount}); err != nil {
		return printError(stderr, err)
	}
	key, err := loadKey(*keyPath)
	if err != nil {
		return printError(stderr, err)
	}
	var result rpc.OKResult
	params := rpc.WithdrawParams{Amount: *amount, To: key.PubKey().Address().String(), Salt: *salt}
	if err := call("quickex_withdraw", params, key, &result); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, stderr, result)
}

func runRefund(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("refund", stderr)
	keyPath := fs.String("key", "", "owner keystore")
	c := fs.String("commitment", "", "escrow commitment")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := required(map[string]string{"key": *keyPath, "commitment": *c}); err != nil {
		return printError(stderr, err)
	}
	key, err := loadKey(*keyPath)
	if err != nil {
		return printError(stderr, err)
	}
	var result rpc.OKResult
	params := rpc.RefundParams{Commitment: *c, Caller: key.PubKey().Address().String()}
	if err := call("quickex_refund", params, key, &result); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, stderr, result)
}

func runPrivacy(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		return printError(stderr, fmt.Errorf("privacy requires a subcommand: set or get"))
	}
	switch args[0] {
	case "set":
		fs := newFlagSet("privacy set", stderr)
		keyPath := fs.String("key", "", "owner keystore")
		enabled := fs.Bool("enabled", true, "whether escrow details are redacted for others")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		key, err := loadKey(*keyPath)
		if err != nil {
			return printError(stderr, err)
		}
		var result rpc.OKResult
		params := rpc.SetPrivacyParams{Owner: key.PubKey().Address().String(), Enabled: *enabled}
		if err := call("quickex_setPrivacy", params, key, &result); err != nil {
			return printError(stderr, err)
		}
		return printJSON(stdout, stderr, result)
	case "get":
		fs := newFlagSet("privacy get", stderr)
		account := fs.String("account", "", "account address")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		if err := required(map[string]string{"account": *account}); err != nil {
			return printError(stderr, err)
		}
		var result rpc.PrivacyResult
		if err := call("quickex_getPrivacy", rpc.AccountParams{Account: *account}, nil, &result); err != nil {
			return printError(stderr, err)
		}
		return printJSON(stdout, stderr, result)
	default:
		return printError(stderr, fmt.Errorf("unknown privacy subcommand %q", args[0]))
	}
}

func runDetails(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("details", stderr)
	c := fs.String("commitment", "", "escrow commitment")
	caller := fs.String("caller", "", "address the view is projected for")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := required(map[string]string{"commitment": *c, "caller": *caller}); err != nil {
		return printError(stderr, err)
	}
	var result rpc.DetailsResult
	if err := call("quickex_getEscrowDetails", rpc.DetailsParams{Commitment: *c, Caller: *caller}, nil, &result); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, stderr, result)
}

func runState(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("state", stderr)
	c := fs.String("commitment", "", "escrow commitment")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := required(map[string]string{"commitment": *c}); err != nil {
		return printError(stderr, err)
	}
	var result rpc.StateResult
	if err := call("quickex_getCommitmentState", rpc.CommitmentParams{Commitment: *c}, nil, &result); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, stderr, result)
}

func runBalance(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("balance", stderr)
	account := fs.String("account", "", "account address")
	token := fs.String("token", "", "token symbol")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := required(map[string]string{"account": *account, "token": *token}); err != nil {
		return printError(stderr, err)
	}
	var result rpc.BalanceResult
	if err := call("quickex_balance", rpc.BalanceParams{Account: *account, Token: *token}, nil, &result); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, stderr, result)
}

func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("status", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	var result rpc.ContractStatusResult
	if err := call("quickex_contractStatus", nil, nil, &result); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, stderr, result)
}

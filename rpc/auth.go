package rpc

import (
	crand "crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"quickex/crypto"
)

var (
	errMissingAuth     = errors.New("auth envelope required")
	errBadSigner       = errors.New("invalid signer")
	errBadSignature    = errors.New("invalid signature")
	errSignerMismatch  = errors.New("signature does not match signer")
	errStaleTimestamp  = errors.New("timestamp outside accepted window")
	errReplayedRequest = errors.New("request already processed")
)

// SigningDigest is keccak256(method || 0x00 || compact(params) || 0x00 ||
// be64(timestamp) || be64(nonce)). Params are compacted so whitespace never
// changes the digest.
func SigningDigest(method string, params []json.RawMessage, timestamp int64, nonce uint64) ([]byte, error) {
	if params == nil {
		params = []json.RawMessage{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	buf := make([]byte, 0, len(method)+len(encoded)+18)
	buf = append(buf, method...)
	buf = append(buf, 0)
	buf = append(buf, encoded...)
	buf = append(buf, 0)
	buf = binary.BigEndian.AppendUint64(buf, uint64(timestamp))
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	return ethcrypto.Keccak256(buf), nil
}

// SignRequest attaches an auth envelope for key to req. Params must not change
// afterwards. A random nonce keeps identical calls in the same second
// distinct.
func SignRequest(req *RPCRequest, key *crypto.PrivateKey, now time.Time) error {
	if req == nil || key == nil {
		return errors.New("sign request: nil request or key")
	}
	var nonceBytes [8]byte
	if _, err := crand.Read(nonceBytes[:]); err != nil {
		return fmt.Errorf("sign request: nonce: %w", err)
	}
	nonce := binary.BigEndian.Uint64(nonceBytes[:])
	ts := now.Unix()
	digest, err := SigningDigest(req.Method, req.Params, ts, nonce)
	if err != nil {
		return err
	}
	sig, err := key.Sign(digest)
	if err != nil {
		return err
	}
	req.Auth = &AuthEnvelope{
		Signer:    key.PubKey().Address().String(),
		Timestamp: ts,
		Nonce:     nonce,
		Signature: "0x" + hex.EncodeToString(sig),
	}
	return nil
}

type authError struct {
	reason string
	err    error
}

func (e *authError) Error() string { return e.err.Error() }
func (e *authError) Unwrap() error { return e.err }

func rejectAuth(reason string, err error) *authError {
	return &authError{reason: reason, err: err}
}

// verifier authenticates signed requests and remembers recent digests so the
// same request cannot execute twice inside the skew window.
type verifier struct {
	maxSkew  time.Duration
	capacity int
	nowFn    func() time.Time

	mu    sync.Mutex
	seen  map[string]time.Time
	order []string
}

func newVerifier(maxSkew time.Duration, capacity int) *verifier {
	if maxSkew <= 0 {
		maxSkew = 2 * time.Minute
	}
	if capacity <= 0 {
		capacity = 4096
	}
	return &verifier{
		maxSkew:  maxSkew,
		capacity: capacity,
		nowFn:    time.Now,
		seen:     make(map[string]time.Time),
	}
}

// verify returns the account that signed req.
func (v *verifier) verify(req *RPCRequest) ([20]byte, *authError) {
	if req.Auth == nil {
		return [20]byte{}, rejectAuth("missing", errMissingAuth)
	}
	signer, err := crypto.ParseAccount(req.Auth.Signer)
	if err != nil {
		return [20]byte{}, rejectAuth("signer", fmt.Errorf("%w: %v", errBadSigner, err))
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(req.Auth.Signature), "0x"))
	if err != nil {
		return [20]byte{}, rejectAuth("signature", fmt.Errorf("%w: %v", errBadSignature, err))
	}
	now := v.nowFn()
	ts := time.Unix(req.Auth.Timestamp, 0)
	if ts.Before(now.Add(-v.maxSkew)) || ts.After(now.Add(v.maxSkew)) {
		return [20]byte{}, rejectAuth("skew", errStaleTimestamp)
	}
	digest, err := SigningDigest(req.Method, req.Params, req.Auth.Timestamp, req.Auth.Nonce)
	if err != nil {
		return [20]byte{}, rejectAuth("params", err)
	}
	recovered, err := crypto.RecoverAccount(digest, sig)
	if err != nil {
		return [20]byte{}, rejectAuth("signature", fmt.Errorf("%w: %v", errBadSignature, err))
	}
	if recovered != signer {
		return [20]byte{}, rejectAuth("mismatch", errSignerMismatch)
	}
	if !v.remember(hex.EncodeToString(digest), now) {
		return [20]byte{}, rejectAuth("replay", errReplayedRequest)
	}
	return signer, nil
}

// remember records key and reports false when it was already present. Entries
// older than twice the skew can no longer pass the timestamp check and are
// pruned; at capacity the oldest entry is evicted.
func (v *verifier) remember(key string, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	cutoff := now.Add(-2 * v.maxSkew)
	for len(v.order) > 0 && !v.seen[v.order[0]].After(cutoff) {
		v.evictOldest()
	}
	if _, dup := v.seen[key]; dup {
		return false
	}
	for len(v.order) >= v.capacity {
		v.evictOldest()
	}
	v.seen[key] = now
	v.order = append(v.order, key)
	return true
}

func (v *verifier) evictOldest() {
	delete(v.seen, v.order[0])
	v.order = v.order[1:]
}

// Package relayer verifies signed wager submissions so that a sponsor can
// create wagers on behalf of users who signed the parameters off-band. The
// signature is a standard EIP-191 personal_sign over a canonical digest of
// the wager parameters, so any wallet can produce it.
package relayer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

var (
	ErrMalformedSignature = errors.New("relayer: malformed signature")
	ErrSignerMismatch     = errors.New("relayer: recovered signer does not match sender")
)

// Submission is the set of signed wager parameters plus the signature that
// authorizes a sponsor to submit them.
type Submission struct {
	Sender            string
	Participants      []string
	Amount            decimal.Decimal
	Condition         string
	CharityEnabled    bool
	CharityPercentage int64
	CharityAddress    string
	Nonce             uint64
	Signature         string
}

// Digest returns the keccak256 hash of the canonical encoding of the signed
// parameters. Fields are joined with newlines in a fixed order; addresses
// are lowercased so checksum casing does not change the hash.
func Digest(s Submission) []byte {
	parts := []string{
		"wagerx:create",
		strings.ToLower(s.Sender),
		strings.ToLower(strings.Join(s.Participants, ",")),
		s.Amount.String(),
		s.Condition,
		fmt.Sprintf("%t", s.CharityEnabled),
		fmt.Sprintf("%d", s.CharityPercentage),
		strings.ToLower(s.CharityAddress),
		fmt.Sprintf("%d", s.Nonce),
	}
	return crypto.Keccak256([]byte(strings.Join(parts, "\n")))
}

// Verify recovers the signer from the submission's signature and checks it
// matches the declared sender. Returns the recovered address on success.
func Verify(s Submission) (common.Address, error) {
	sig, err := decodeSignature(s.Signature)
	if err != nil {
		return common.Address{}, err
	}

	// personal_sign wraps the digest hex string, not the raw bytes.
	msg := hexutilEncode(Digest(s))
	hash := accounts.TextHash([]byte(msg))

	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, ErrMalformedSignature
	}
	recovered := crypto.PubkeyToAddress(*pub)
	if !strings.EqualFold(recovered.Hex(), s.Sender) {
		return common.Address{}, ErrSignerMismatch
	}
	return recovered, nil
}

// Sign produces a signature for the submission with the given private key,
// mirroring what a wallet's personal_sign would emit. Used by tests and by
// the development tooling.
func Sign(s Submission, keyHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return "", err
	}
	msg := hexutilEncode(Digest(s))
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

func decodeSignature(raw string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil || len(sig) != 65 {
		return nil, ErrMalformedSignature
	}
	// wallets emit v as 27/28, crypto.SigToPub wants 0/1
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	return sig, nil
}

func hexutilEncode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

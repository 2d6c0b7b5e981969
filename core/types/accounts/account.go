package accounts

import (
	"fmt"
	"math/bits"

	"github.com/holiman/uint256"

	"github.com/ledgerwatch/silkexec/common"
	"github.com/ledgerwatch/silkexec/crypto"
)

// Account is the Ethereum consensus representation of accounts as kept in the
// plain state. Storage of a contract is addressed through the incarnation,
// a monotonically increasing counter bumped on each self-destruct, so that a
// re-created contract does not observe the storage of its predecessor.
type Account struct {
	Initialised bool
	Nonce       uint64
	Balance     uint256.Int
	Incarnation uint64
	CodeHash    common.Hash // hash of the bytecode
}

var emptyCodeHash = crypto.Keccak256Hash(nil)

// EmptyCodeHash is the known hash of the empty bytecode.
var EmptyCodeHash = emptyCodeHash

// EmptyRoot is the known root hash of an empty trie.
var EmptyRoot = common.HexToHash("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

// NewAccount returns a default-initialised account with the empty code hash.
func NewAccount() Account {
	return Account{
		Initialised: true,
		CodeHash:    emptyCodeHash,
	}
}

const (
	fieldSetNonce       = 1
	fieldSetBalance     = 2
	fieldSetIncarnation = 4
	fieldSetCodeHash    = 8
)

// EncodingLengthForStorage returns the number of bytes EncodeForStorage will
// produce for the account.
func (a *Account) EncodingLengthForStorage() uint {
	var structLength uint = 1 // fieldset

	if !a.Balance.IsZero() {
		structLength += uint(a.Balance.ByteLen()) + 1
	}

	if a.Nonce > 0 {
		structLength += uint((bits.Len64(a.Nonce)+7)/8) + 1
	}

	if !a.IsEmptyCodeHash() {
		structLength += 33 // 32-byte array + 1 byte for length
	}

	if a.Incarnation > 0 {
		structLength += uint((bits.Len64(a.Incarnation)+7)/8) + 1
	}

	return structLength
}

// EncodeForStorage serialises the account into buffer using the compact
// field-set layout: a leading presence bitmap followed by length-prefixed
// minimal big-endian encodings of nonce, balance, incarnation and code hash.
func (a *Account) EncodeForStorage(buffer []byte) {
	var fieldSet = 0 // start with first bit set to 0
	var pos = 1
	if a.Nonce > 0 {
		fieldSet = fieldSetNonce
		nonceBytes := (bits.Len64(a.Nonce) + 7) / 8
		buffer[pos] = byte(nonceBytes)
		var nonce = a.Nonce
		for i := nonceBytes; i > 0; i-- {
			buffer[pos+i] = byte(nonce)
			nonce >>= 8
		}
		pos += nonceBytes + 1
	}

	// Encoding balance
	if !a.Balance.IsZero() {
		fieldSet |= fieldSetBalance
		balanceBytes := a.Balance.ByteLen()
		buffer[pos] = byte(balanceBytes)
		pos++
		a.Balance.WriteToSlice(buffer[pos : pos+balanceBytes])
		pos += balanceBytes
	}

	if a.Incarnation > 0 {
		fieldSet |= fieldSetIncarnation
		incarnationBytes := (bits.Len64(a.Incarnation) + 7) / 8
		buffer[pos] = byte(incarnationBytes)
		var incarnation = a.Incarnation
		for i := incarnationBytes; i > 0; i-- {
			buffer[pos+i] = byte(incarnation)
			incarnation >>= 8
		}
		pos += incarnationBytes + 1
	}

	// Encoding code hash
	if !a.IsEmptyCodeHash() {
		fieldSet |= fieldSetCodeHash
		buffer[pos] = 32
		copy(buffer[pos+1:], a.CodeHash[:])
		pos += 33
	}

	buffer[0] = byte(fieldSet)
}

// DecodeForStorage is the inverse of EncodeForStorage. A zero-length input
// decodes to the uninitialised account.
func (a *Account) DecodeForStorage(enc []byte) error {
	a.Reset()

	if len(enc) == 0 {
		return nil
	}

	a.Initialised = true
	var fieldSet = enc[0]
	var pos = 1

	if fieldSet&fieldSetNonce > 0 {
		decodeLength := int(enc[pos])

		if len(enc) < pos+decodeLength+1 {
			return fmt.Errorf(
				"malformed CBOR for Account.Nonce: %s, Length %d",
				enc[pos+1:], decodeLength)
		}

		var nonce uint64
		for _, b := range enc[pos+1 : pos+decodeLength+1] {
			nonce = (nonce << 8) + uint64(b)
		}
		a.Nonce = nonce
		pos += decodeLength + 1
	}

	if fieldSet&fieldSetBalance > 0 {
		decodeLength := int(enc[pos])

		if len(enc) < pos+decodeLength+1 {
			return fmt.Errorf(
				"malformed CBOR for Account.Balance: %s, Length %d",
				enc[pos+1:], decodeLength)
		}

		a.Balance.SetBytes(enc[pos+1 : pos+decodeLength+1])
		pos += decodeLength + 1
	}

	if fieldSet&fieldSetIncarnation > 0 {
		decodeLength := int(enc[pos])

		if len(enc) < pos+decodeLength+1 {
			return fmt.Errorf(
				"malformed CBOR for Account.Incarnation: %s, Length %d",
				enc[pos+1:], decodeLength)
		}

		var incarnation uint64
		for _, b := range enc[pos+1 : pos+decodeLength+1] {
			incarnation = (incarnation << 8) + uint64(b)
		}
		a.Incarnation = incarnation
		pos += decodeLength + 1
	}

	if fieldSet&fieldSetCodeHash > 0 {
		decodeLength := int(enc[pos])

		if decodeLength != 32 {
			return fmt.Errorf("codehash should be 32 bytes long, got %d instead",
				decodeLength)
		}

		if len(enc) < pos+decodeLength+1 {
			return fmt.Errorf(
				"malformed CBOR for Account.CodeHash: %s, Length %d",
				enc[pos+1:], decodeLength)
		}

		a.CodeHash.SetBytes(enc[pos+1 : pos+decodeLength+1])
	}

	return nil
}

// Decode is a convenience wrapper returning nil for a zero-length encoding.
func Decode(enc []byte) (*Account, error) {
	if len(enc) == 0 {
		return nil, nil
	}

	acc := new(Account)
	if err := acc.DecodeForStorage(enc); err != nil {
		return nil, err
	}
	return acc, nil
}

// Reset brings the account back to the uninitialised default.
func (a *Account) Reset() {
	a.Initialised = false
	a.Nonce = 0
	a.Incarnation = 0
	a.Balance.Clear()
	a.CodeHash = emptyCodeHash
}

// SelfCopy returns a deep copy of the account.
func (a *Account) SelfCopy() *Account {
	newAcc := new(Account)
	newAcc.Copy(a)
	return newAcc
}

// Copy makes the account a deep copy of image.
func (a *Account) Copy(image *Account) {
	a.Initialised = image.Initialised
	a.Nonce = image.Nonce
	a.Balance.Set(&image.Balance)
	a.Incarnation = image.Incarnation
	a.CodeHash = image.CodeHash
}

// Equals compares every persisted field of the two accounts.
func (a *Account) Equals(acc *Account) bool {
	return a.Nonce == acc.Nonce &&
		a.CodeHash == acc.CodeHash &&
		a.Balance.Cmp(&acc.Balance) == 0 &&
		a.Incarnation == acc.Incarnation
}

// IsEmptyCodeHash reports whether the account carries no code.
func (a *Account) IsEmptyCodeHash() bool {
	return a.CodeHash == emptyCodeHash || a.CodeHash.IsZero()
}

// IsEmpty implements the EIP-161 definition: no nonce, no balance, no code.
func (a *Account) IsEmpty() bool {
	return a.Nonce == 0 && a.Balance.IsZero() && a.IsEmptyCodeHash()
}

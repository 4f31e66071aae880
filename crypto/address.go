package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"lukechampine.com/blake3"
)

// AddressLength is the size of an account address in bytes.
const AddressLength = 32

var (
	errAddressLength = errors.New("crypto: address must be 32 bytes")
	errEmptyAddress  = errors.New("crypto: empty address string")
)

// Address identifies an account, a mint or a program. The text form is base58.
type Address [AddressLength]byte

// ZeroAddress is the default address; it is never a valid owner or wallet.
var ZeroAddress Address

// Well-known addresses.
var (
	// NativeMint is the wrapped base-currency mint that constant-product pools
	// quote against.
	NativeMint = MustParseAddress("So11111111111111111111111111111111111111112")
	// ProgramID owns every record persisted by the protocol.
	ProgramID = HashToAddress([]byte("memelend/program"))
	// PumpfunProgramID is the bonding-curve program whose curve accounts are
	// derived from the token mint.
	PumpfunProgramID = HashToAddress([]byte("memelend/pumpfun"))
	// SystemProgramID owns plain lamport accounts.
	SystemProgramID = ZeroAddress
)

// AddressFromBytes copies b into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var addr Address
	if len(b) != AddressLength {
		return addr, errAddressLength
	}
	copy(addr[:], b)
	return addr, nil
}

// ParseAddress decodes the base58 text form.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Address{}, errEmptyAddress
	}
	raw, err := base58.Decode(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: invalid base58 address: %w", err)
	}
	return AddressFromBytes(raw)
}

// MustParseAddress is ParseAddress for package-level constants.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// HashToAddress maps arbitrary bytes onto the address space.
func HashToAddress(data []byte) Address {
	return Address(blake3.Sum256(data))
}

func (a Address) String() string { return base58.Encode(a[:]) }

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

func (a Address) IsZero() bool { return a == ZeroAddress }

func (a Address) Equal(other Address) bool { return bytes.Equal(a[:], other[:]) }

// MarshalText implements encoding.TextMarshaler so addresses render as base58
// in JSON payloads and TOML/YAML config files.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	if len(bytes.TrimSpace(text)) == 0 {
		*a = ZeroAddress
		return nil
	}
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// DeriveAddress computes a program-derived address from a namespacing tag and
// identifying seeds. The derivation is domain separated by the program id so
// two programs never collide on the same seeds. Seeds are length prefixed.
func DeriveAddress(program Address, tag string, seeds ...[]byte) Address {
	hasher := blake3.New(AddressLength, nil)
	writeSeed(hasher, []byte(tag))
	for _, seed := range seeds {
		writeSeed(hasher, seed)
	}
	hasher.Write(program[:])
	hasher.Write([]byte("program-derived"))
	var out Address
	copy(out[:], hasher.Sum(nil))
	return out
}

func writeSeed(h *blake3.Hasher, seed []byte) {
	var size [2]byte
	size[0] = byte(len(seed))
	size[1] = byte(len(seed) >> 8)
	h.Write(size[:])
	h.Write(seed)
}

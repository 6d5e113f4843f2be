package types

import (
	"crypto/sha1"
	"encoding/json"
	"math/big"
)

// IdentifierBits is the width of the identifier space, following the
// teacher's SHA-1-derived ids in peer/impl/dht.go.
const IdentifierBits = 160

// Identifier is an opaque fixed-width bit string drawn from the same space
// as DHT keys and node ids. It is represented as a big.Int so that XOR
// distance is a plain integer comparison. SHA-1-derived ids fit in
// IdentifierBits; the constructors do not clamp wider inputs.
type Identifier struct {
	val big.Int
}

// IdentifierFromBytes builds an Identifier from its big-endian encoding.
func IdentifierFromBytes(b []byte) Identifier {
	var id Identifier
	id.val.SetBytes(b)
	return id
}

// IdentifierFromString hashes addr with SHA-1, matching NewContact in the
// teacher's peer/impl/dht.go.
func IdentifierFromString(addr string) Identifier {
	hash := sha1.Sum([]byte(addr))
	return IdentifierFromBytes(hash[:])
}

// IdentifierFromHex parses the hex encoding String() produces, used to
// recover an identifier carried as plain text on the wire (transport
// headers, CLI input) rather than through MarshalJSON.
func IdentifierFromHex(s string) (Identifier, bool) {
	var id Identifier
	if s == "" {
		return id, true
	}
	_, ok := id.val.SetString(s, 16)
	return id, ok
}

// Bytes returns the big-endian encoding of the identifier.
func (id Identifier) Bytes() []byte {
	return id.val.Bytes()
}

// String returns the hex encoding of the identifier.
func (id Identifier) String() string {
	return id.val.Text(16)
}

// Equal reports whether two identifiers denote the same point in the space.
func (id Identifier) Equal(other Identifier) bool {
	return id.val.Cmp(&other.val) == 0
}

// Distance returns the XOR distance between id and other as an integer,
// per spec.md §3: "the integer value of the bitwise XOR".
func (id Identifier) Distance(other Identifier) *big.Int {
	return new(big.Int).Xor(&id.val, &other.val)
}

// CloserTo reports whether a is strictly closer to target than b by XOR
// distance — the "closer to target T" total order spec.md §3 requires.
func CloserTo(target, a, b Identifier) bool {
	return target.Distance(a).Cmp(target.Distance(b)) < 0
}

// MarshalJSON implements json.Marshaler so Identifier can travel inside
// wire messages the same way the teacher marshals types.Contact (a
// big.Int-backed struct) with encoding/json.
func (id Identifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.val.Text(16))
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		id.val.SetInt64(0)
		return nil
	}
	_, ok := id.val.SetString(s, 16)
	if !ok {
		return &json.UnsupportedValueError{Str: s}
	}
	return nil
}

package keys

import "fmt"

// Kind tags both batch records and internal keys. The numeric values are
// part of the on-disk format and must never change.
type Kind uint8

const (
	KindDelete            Kind = 0x0
	KindPut               Kind = 0x1
	KindPutWriteTime      Kind = 0x2
	KindPutExplicitExpiry Kind = 0x3

	kindMax = KindPutExplicitExpiry

	// kindSeek only appears in lookup keys: with equal sequence numbers it
	// sorts before every real kind and carries no expiry.
	kindSeek Kind = 0xff
)

func (k Kind) Valid() bool {
	return k <= kindMax
}

// IsValue reports whether the kind carries a value.
func (k Kind) IsValue() bool {
	return k == KindPut || k.HasExpiry()
}

// HasExpiry reports whether records of this kind carry an 8 byte expiry.
func (k Kind) HasExpiry() bool {
	return k == KindPutWriteTime || k == KindPutExplicitExpiry
}

func (k Kind) String() string {
	switch k {
	case KindDelete:
		return "Delete"
	case KindPut:
		return "Put"
	case KindPutWriteTime:
		return "PutWT"
	case KindPutExplicitExpiry:
		return "PutEE"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

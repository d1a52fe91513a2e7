package document

import "fmt"

// Kind classifies a structure node.
type Kind int

const (
	// KindScalar is a leaf value (string, number, bool, datetime or a plain array).
	KindScalar Kind = iota
	// KindTable is a TOML table.
	KindTable
	// KindArrayOfTables is a non-empty array whose elements are all tables.
	KindArrayOfTables
)

const (
	wireScalar        = "scalar"
	wireKeyValue      = "key_value"
	wireTable         = "table"
	wireArrayOfTables = "array_of_tables"
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTable:
		return wireTable
	case KindArrayOfTables:
		return wireArrayOfTables
	default:
		return wireScalar
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The legacy "key_value" name decodes as KindScalar.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind converts a wire name into a Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case wireScalar, wireKeyValue:
		return KindScalar, nil
	case wireTable:
		return KindTable, nil
	case wireArrayOfTables:
		return KindArrayOfTables, nil
	default:
		return KindScalar, fmt.Errorf("unknown node type %q", name)
	}
}

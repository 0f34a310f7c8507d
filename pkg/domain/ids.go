// Package domain holds typed identifiers shared across modules.
//
// Each identifier is a distinct named UUID type so an AccountID can never be
// passed where a RoleID is expected. Parse functions are the trust boundary
// for identifiers arriving from transports and CLIs.
package domain

import (
	"bytes"

	"github.com/google/uuid"

	dErrors "rolesync/pkg/domain-errors"
)

type (
	AccountID  uuid.UUID
	RoleID     uuid.UUID
	PropertyID uuid.UUID
	BatchID    uuid.UUID
)

func (id AccountID) String() string  { return uuid.UUID(id).String() }
func (id RoleID) String() string     { return uuid.UUID(id).String() }
func (id PropertyID) String() string { return uuid.UUID(id).String() }
func (id BatchID) String() string    { return uuid.UUID(id).String() }

func (id AccountID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id RoleID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PropertyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BatchID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets ids act as JSON map keys and values.
func (id PropertyID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *PropertyID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id RoleID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *RoleID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id AccountID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *AccountID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func NewAccountID() AccountID   { return AccountID(uuid.New()) }
// NewRoleID returns a time-ordered (version 7) id. Ids minted by one process
// sort in minting order even within the same millisecond, so role ids break
// ties between roles that share a creation timestamp.
func NewRoleID() RoleID { return RoleID(uuid.Must(uuid.NewV7())) }

// Compare orders role ids bytewise, the same order Postgres uses for uuid.
func (id RoleID) Compare(other RoleID) int { return bytes.Compare(id[:], other[:]) }
func NewPropertyID() PropertyID { return PropertyID(uuid.New()) }
func NewBatchID() BatchID       { return BatchID(uuid.New()) }

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return parsed, nil
}

func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account id")
	return AccountID(u), err
}

func ParseRoleID(s string) (RoleID, error) {
	u, err := parseUUID(s, "role id")
	return RoleID(u), err
}

func ParsePropertyID(s string) (PropertyID, error) {
	u, err := parseUUID(s, "property id")
	return PropertyID(u), err
}

// ParsePropertyIDs parses every entry, failing on the first invalid one.
func ParsePropertyIDs(values []string) ([]PropertyID, error) {
	out := make([]PropertyID, 0, len(values))
	for _, v := range values {
		pid, err := ParsePropertyID(v)
		if err != nil {
			return nil, err
		}
		out = append(out, pid)
	}
	return out, nil
}

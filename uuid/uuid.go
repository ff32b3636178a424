// Copyright (C) 2017 ScyllaDB

package uuid

import (
	"github.com/gocql/gocql"
)

// Nil UUID is special form of UUID that is specified to have all
// 128 bits set to zero.
// https://tools.ietf.org/html/rfc4122#section-4.1.7
var Nil UUID

// UUID is a wrapper for a UUID type, currently "github.com/gocql/gocql".UUID.
type UUID struct {
	gocql.UUID
}

// NewRandom returns a random (Version 4) UUID and error if it fails to read
// from it's random source.
func NewRandom() (UUID, error) {
	u, err := gocql.RandomUUID()
	if err != nil {
		return Nil, err
	}
	return UUID{UUID: u}, nil
}

// MustRandom works like NewRandom but will panic on error.
func MustRandom() UUID {
	u, err := NewRandom()
	if err != nil {
		panic(err)
	}
	return u
}

// Parse creates a UUID from a string representation.
func Parse(s string) (UUID, error) {
	u, err := gocql.ParseUUID(s)
	if err != nil {
		return Nil, err
	}
	return UUID{UUID: u}, nil
}

// MarshalCQL implements gocql.Marshaler.
func (u UUID) MarshalCQL(info gocql.TypeInfo) ([]byte, error) {
	return u.UUID[:], nil
}

// UnmarshalCQL implements gocql.Unmarshaler.
func (u *UUID) UnmarshalCQL(info gocql.TypeInfo, data []byte) error {
	if len(data) == 0 {
		*u = Nil
		return nil
	}

	var err error
	u.UUID, err = gocql.UUIDFromBytes(data)
	if err != nil {
		return err
	}
	return nil
}

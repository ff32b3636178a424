// Copyright (C) 2017 ScyllaDB

package repair

import (
	"context"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
	"github.com/scylladb/gocqlx/v2"
	"github.com/scylladb/gocqlx/v2/qb"
	"github.com/scylladb/repaird"
	"github.com/scylladb/repaird/schema"
	"github.com/scylladb/repaird/uuid"
)

// Storage provides access to the persisted segment, run and unit records.
// The records are shared with other processes of the cluster coordination
// system, the repair service does not assume exclusive ownership. Lookups
// report repaird.ErrNotFound when the record does not exist, which is
// distinct from an I/O failure.
type Storage interface {
	GetSegment(ctx context.Context, id uuid.UUID) (*Segment, error)
	UpdateSegment(ctx context.Context, s *Segment) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	UpdateRun(ctx context.Context, r *Run) error
	GetUnit(ctx context.Context, id uuid.UUID) (*Unit, error)
}

// CqlStorage is a Storage implementation on top of a CQL session.
type CqlStorage struct {
	session gocqlx.Session
}

var _ Storage = (*CqlStorage)(nil)

// NewCqlStorage creates a CQL backed Storage.
func NewCqlStorage(session gocqlx.Session) (*CqlStorage, error) {
	if session.Session == nil || session.Closed() {
		return nil, errors.New("invalid session")
	}
	return &CqlStorage{session: session}, nil
}

// GetSegment returns a segment based on ID.
func (s *CqlStorage) GetSegment(ctx context.Context, id uuid.UUID) (*Segment, error) {
	stmt, names := schema.RepairSegment.Get()
	q := s.session.ContextQuery(ctx, stmt, names).BindMap(qb.M{
		"id": id,
	})

	var v Segment
	if err := q.GetRelease(&v); err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// UpdateSegment upserts a segment.
func (s *CqlStorage) UpdateSegment(ctx context.Context, v *Segment) error {
	stmt, names := schema.RepairSegment.Insert()
	q := s.session.ContextQuery(ctx, stmt, names).BindStruct(v)
	return q.ExecRelease()
}

// GetRun returns a run based on ID.
func (s *CqlStorage) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	stmt, names := schema.RepairRun.Get()
	q := s.session.ContextQuery(ctx, stmt, names).BindMap(qb.M{
		"id": id,
	})

	var v Run
	if err := q.GetRelease(&v); err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// UpdateRun upserts a run.
func (s *CqlStorage) UpdateRun(ctx context.Context, v *Run) error {
	stmt, names := schema.RepairRun.Insert()
	q := s.session.ContextQuery(ctx, stmt, names).BindStruct(v)
	return q.ExecRelease()
}

// GetUnit returns a unit based on ID.
func (s *CqlStorage) GetUnit(ctx context.Context, id uuid.UUID) (*Unit, error) {
	stmt, names := schema.RepairUnit.Get()
	q := s.session.ContextQuery(ctx, stmt, names).BindMap(qb.M{
		"id": id,
	})

	var v Unit
	if err := q.GetRelease(&v); err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func notFound(err error) error {
	if err == gocql.ErrNotFound {
		return repaird.ErrNotFound
	}
	return err
}

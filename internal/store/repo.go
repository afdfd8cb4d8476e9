package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/prm"
)

type Repo struct {
	db *gorm.DB
}

func OpenPostgres(user, password, dbName, host, port, sslMode string) (*gorm.DB, error) {
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC", host, user, password, dbName, port, sslMode)
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func New(db *gorm.DB) (*Repo, error) {
	if err := db.AutoMigrate(&JointStateSnapshot{}); err != nil {
		return nil, err
	}
	return &Repo{db: db}, nil
}

// SnapshotFromState builds the row recorded for one read of command on arm.
func SnapshotFromState(arm, command string, s prm.StateJoint) (*JointStateSnapshot, error) {
	enc := func(v any) (datatypes.JSON, error) {
		b, err := json.Marshal(v)
		return datatypes.JSON(b), err
	}
	names := s.Name
	if names == nil {
		names = []string{}
	}
	p := &JointStateSnapshot{Arm: arm, Command: command, TS: s.Timestamp.UTC()}
	var err error
	if p.Names, err = enc(names); err != nil {
		return nil, err
	}
	if p.Position, err = enc(nonNil(s.Position)); err != nil {
		return nil, err
	}
	if p.Velocity, err = enc(nonNil(s.Velocity)); err != nil {
		return nil, err
	}
	if p.Effort, err = enc(nonNil(s.Effort)); err != nil {
		return nil, err
	}
	return p, nil
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

func (r *Repo) InsertSnapshot(ctx context.Context, p *JointStateSnapshot) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(p).Error
}

type Page struct {
	Snapshots  []JointStateSnapshot `json:"snapshots"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

func (r *Repo) ListSnapshots(ctx context.Context, arm string, limit int, cursor *Cursor, desc bool) (Page, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 5000 {
		limit = 5000
	}

	exprs := []clause.Expression{
		clause.Eq{Column: clause.Column{Name: "arm"}, Value: arm},
	}
	if cursor != nil {
		if desc {
			exprs = append(exprs, clause.Or(
				clause.Lt{Column: clause.Column{Name: "ts"}, Value: cursor.TS},
				clause.And(
					clause.Eq{Column: clause.Column{Name: "ts"}, Value: cursor.TS},
					clause.Lt{Column: clause.Column{Name: "id"}, Value: cursor.ID},
				),
			))
		} else {
			exprs = append(exprs, clause.Or(
				clause.Gt{Column: clause.Column{Name: "ts"}, Value: cursor.TS},
				clause.And(
					clause.Eq{Column: clause.Column{Name: "ts"}, Value: cursor.TS},
					clause.Gt{Column: clause.Column{Name: "id"}, Value: cursor.ID},
				),
			))
		}
	}
	order := clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "ts"}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: desc},
	}}

	var rows []JointStateSnapshot
	if err := r.db.WithContext(ctx).Clauses(clause.Where{Exprs: exprs}, order).Limit(limit + 1).Find(&rows).Error; err != nil {
		return Page{}, err
	}
	out := Page{Snapshots: rows}
	if len(rows) > limit {
		last := rows[limit-1]
		out.Snapshots = rows[:limit]
		out.NextCursor = EncodeCursor(Cursor{TS: last.TS, ID: last.ID})
	}
	return out, nil
}

// PruneBefore deletes snapshots older than cutoff and reports how many went.
func (r *Repo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where(clause.Lt{Column: clause.Column{Name: "ts"}, Value: cutoff.UTC()}).
		Delete(&JointStateSnapshot{})
	return res.RowsAffected, res.Error
}

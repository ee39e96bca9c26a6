package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wgpanel/internal/models"
)

// DBStore keeps the state document in a single row keyed by interface name.
type DBStore struct {
	db    *gorm.DB
	iface string
}

func NewDBStore(db *gorm.DB, iface string) *DBStore { return &DBStore{db: db, iface: iface} }

func (s *DBStore) Load(ctx context.Context) (*models.State, error) {
	var rec models.StateRecord
	err := s.db.WithContext(ctx).Where("interface = ?", s.iface).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: interface %s", ErrNoState, s.iface)
	}
	if err != nil {
		return nil, err
	}
	var st models.State
	if err := json.Unmarshal(rec.Document, &st); err != nil {
		return nil, fmt.Errorf("parse state of %s: %w", s.iface, err)
	}
	return normalize(&st), nil
}

func (s *DBStore) Save(ctx context.Context, st *models.State) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return err
	}
	rec := models.StateRecord{Interface: s.iface, Document: doc}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "interface"}},
		DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
	}).Create(&rec).Error
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"gorm.io/gorm"

	"github.com/Ananth-NQI/sessiongate/internal/models"
)

// DatabaseStore keeps sessions in the session_entries table through gorm
type DatabaseStore struct {
	db   *gorm.DB
	name string
}

// NewDatabaseStore migrates the session table and returns a store on db.
// name is only used for Path().
func NewDatabaseStore(db *gorm.DB, name string) (*DatabaseStore, error) {
	if err := db.AutoMigrate(&models.SessionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session table: %w", err)
	}
	return &DatabaseStore{db: db, name: name}, nil
}

func (d *DatabaseStore) Path() string {
	return d.name
}

func (d *DatabaseStore) Load(ctx context.Context) (models.Sessions, error) {
	var rows []models.SessionRecord
	if err := d.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	return decodeRecords(rows), nil
}

// Save replaces every row inside one transaction
func (d *DatabaseStore) Save(ctx context.Context, sessions models.Sessions) error {
	records, err := encodeRecords(sessions)
	if err != nil {
		return err
	}
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.SessionRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 100).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}
	return nil
}

// encodeRecords turns the map into rows sorted by key
func encodeRecords(sessions models.Sessions) ([]models.SessionRecord, error) {
	keys := make([]string, 0, len(sessions))
	for k, v := range sessions {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	records := make([]models.SessionRecord, 0, len(keys))
	for _, k := range keys {
		e := sessions[k]
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal %s: %v", ErrSave, k, err)
		}
		records = append(records, models.SessionRecord{Key: k, Entry: string(data), UpdatedAt: e.UpdatedAt})
	}
	return records, nil
}

// decodeRecords skips rows whose JSON no longer parses
func decodeRecords(rows []models.SessionRecord) models.Sessions {
	sessions := make(models.Sessions, len(rows))
	for _, row := range rows {
		var e models.SessionEntry
		if err := json.Unmarshal([]byte(row.Entry), &e); err != nil {
			log.Printf("⚠️  Skipping unreadable session row %q: %v", row.Key, err)
			continue
		}
		sessions[row.Key] = &e
	}
	return sessions
}

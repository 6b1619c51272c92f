package docstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type documentRow struct {
	Collection string         `gorm:"primaryKey"`
	ID         string         `gorm:"primaryKey"`
	Fields     datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
}

func (documentRow) TableName() string {
	return "documents"
}

// SQLiteStore keeps documents in the application database. The documents
// table is created by the embedded migrations.
type SQLiteStore struct {
	database *gorm.DB
}

func NewSQLiteStore(database *gorm.DB) *SQLiteStore {
	return &SQLiteStore{database: database}
}

func (store *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := store.database.DB()
	if err != nil {
		return fmt.Errorf("sqlite handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

func (store *SQLiteStore) Query(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	if err := validateQuery(collection, filter); err != nil {
		return nil, err
	}

	rows := make([]documentRow, 0)
	if err := store.database.WithContext(ctx).
		Where("collection = ?", collection).
		Where(datatypes.JSONQuery("fields").Equals(filter.Value, filter.Field)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	documents := make([]Document, 0, len(rows))
	for _, row := range rows {
		fields, err := DecodeFields(row.Fields)
		if err != nil {
			return nil, fmt.Errorf("document %s/%s: %w", collection, row.ID, err)
		}
		documents = append(documents, Document{ID: row.ID, Fields: fields})
	}
	return documents, nil
}

func (store *SQLiteStore) Put(ctx context.Context, collection string, document Document) error {
	if err := validatePut(collection, document); err != nil {
		return err
	}

	encoded, err := EncodeFields(document.Fields)
	if err != nil {
		return err
	}
	row := documentRow{
		Collection: collection,
		ID:         document.ID,
		Fields:     datatypes.JSON(encoded),
	}
	return store.database.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"fields"}),
	}).Create(&row).Error
}

// Close is a no-op: the database handle belongs to the caller.
func (store *SQLiteStore) Close() error {
	return nil
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"platewatch-service/internal/domain/registry"
)

type RegistryRepository struct {
	db *gorm.DB
}

func NewRegistryRepository(db *gorm.DB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

// LoadRecords reads the full vehicle registry: every vehicle joined to
// its plate, with the wanted flag derived from blacklist membership.
// Called once at startup; the service never writes these tables.
func (r *RegistryRepository) LoadRecords(ctx context.Context) ([]registry.Record, error) {
	var records []registry.Record
	err := r.db.WithContext(ctx).
		Table("vehicles").
		Select(`plates.normalized AS plate,
			COALESCE(vehicles.make, '') AS make,
			COALESCE(vehicles.model, '') AS model,
			COALESCE(vehicles.color, '') AS color,
			EXISTS(
				SELECT 1 FROM list_items
				JOIN lists ON list_items.list_id = lists.id
				WHERE list_items.plate_id = plates.id AND lists.type = 'BLACKLIST'
			) AS wanted`).
		Joins("JOIN plates ON vehicles.plate_id = plates.id").
		Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

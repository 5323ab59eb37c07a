package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// RecognitionEvent is one persisted capture outcome: the decoded plate
// (if any), the verdict, the vision attributes used for comparison and
// the raw unified result for later inspection.
type RecognitionEvent struct {
	ID              int64 `gorm:"primaryKey"`
	CaptureID       *string
	Source          string `gorm:"not null"`
	RawPlate        *string
	NormalizedPlate *string
	Confidence      *float64
	VerdictKind     string `gorm:"not null"`
	Reasons         datatypes.JSON
	Wanted          bool
	VisionStatus    string `gorm:"not null"`
	VehicleMake     *string
	VehicleModel    *string
	VehicleColor    *string
	RawResult       datatypes.JSON
	EventTime       time.Time `gorm:"not null"`
	CreatedAt       time.Time
}

type PlateSummary struct {
	Plate     string     `json:"plate"`
	Sightings int64      `json:"sightings"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

func (r *EventRepository) CreateEvent(ctx context.Context, event *RecognitionEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *EventRepository) FindEvents(ctx context.Context, normalizedPlate *string, from, to *time.Time, limit, offset int) ([]RecognitionEvent, error) {
	query := r.db.WithContext(ctx).Model(&RecognitionEvent{})

	if normalizedPlate != nil {
		query = query.Where("normalized_plate = ?", *normalizedPlate)
	}
	if from != nil {
		query = query.Where("event_time >= ?", *from)
	}
	if to != nil {
		query = query.Where("event_time <= ?", *to)
	}

	query = query.Order("event_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var events []RecognitionEvent
	err := query.Find(&events).Error
	return events, err
}

func (r *EventRepository) FindPlateSummaries(ctx context.Context, normalized string) ([]PlateSummary, error) {
	var summaries []PlateSummary
	err := r.db.WithContext(ctx).
		Model(&RecognitionEvent{}).
		Select("normalized_plate AS plate, COUNT(*) AS sightings, MAX(event_time) AS last_seen").
		Where("normalized_plate = ?", normalized).
		Group("normalized_plate").
		Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *EventRepository) DeleteOldEvents(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result := r.db.WithContext(ctx).
		Where("event_time < ?", cutoff).
		Delete(&RecognitionEvent{})
	return result.RowsAffected, result.Error
}

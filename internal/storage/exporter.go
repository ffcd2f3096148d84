package storage

import (
	"alcyxob/workym/internal/domain"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const exportContentType = "application/json"

// Export describes an uploaded plan export.
type Export struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type exportDocument struct {
	UserID     string               `json:"userId"`
	ExportedAt time.Time            `json:"exportedAt"`
	Plans      []domain.WorkoutPlan `json:"plans"`
}

// PlanExporter uploads a user's plans as one JSON object.
type PlanExporter struct {
	storage FileStorage
	expiry  time.Duration
	now     func() time.Time
}

// NewPlanExporter returns an exporter whose download links last expiry.
func NewPlanExporter(storage FileStorage, expiry time.Duration) *PlanExporter {
	if expiry <= 0 {
		expiry = DefaultPresignedURLExpiry
	}
	return &PlanExporter{storage: storage, expiry: expiry, now: time.Now}
}

// ExportKey returns a fresh object key under the user's export prefix.
func ExportKey(userID string) string {
	return fmt.Sprintf("exports/%s/%s.json", userID, uuid.NewString())
}

// Export uploads plans and returns a presigned download link. If presigning
// fails the uploaded object is removed again.
func (e *PlanExporter) Export(ctx context.Context, userID string, plans []domain.WorkoutPlan) (*Export, error) {
	if plans == nil {
		plans = []domain.WorkoutPlan{}
	}
	now := e.now()
	body, err := json.Marshal(exportDocument{UserID: userID, ExportedAt: now.UTC(), Plans: plans})
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	key := ExportKey(userID)
	if err := e.storage.PutObject(ctx, key, exportContentType, body); err != nil {
		return nil, err
	}
	url, err := e.storage.GeneratePresignedDownloadURL(ctx, key, e.expiry)
	if err != nil {
		if delErr := e.storage.DeleteObject(ctx, key); delErr != nil {
			return nil, fmt.Errorf("%w (cleanup: %v)", err, delErr)
		}
		return nil, err
	}
	return &Export{Key: key, URL: url, Count: len(plans), ExpiresAt: now.Add(e.expiry)}, nil
}

package storage

import (
	"alcyxob/workym/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	objects    map[string][]byte
	types      map[string]string
	presignErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStorage) PutObject(_ context.Context, key, contentType string, body []byte) error {
	f.objects[key] = body
	f.types[key] = contentType
	return nil
}

func (f *fakeStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://bucket.example/" + key + "?sig=1", nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func TestExport(t *testing.T) {
	fs := newFakeStorage()
	e := NewPlanExporter(fs, time.Minute)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	plan := domain.NewDefaultPlan()
	plan.ID = "p1"
	out, err := e.Export(context.Background(), "u1", []domain.WorkoutPlan{*plan})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.Key, "exports/u1/"))
	assert.True(t, strings.HasSuffix(out.Key, ".json"))
	assert.Contains(t, out.URL, out.Key)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, fixed.Add(time.Minute), out.ExpiresAt)
	assert.Equal(t, "application/json", fs.types[out.Key])

	var doc exportDocument
	require.NoError(t, json.Unmarshal(fs.objects[out.Key], &doc))
	assert.Equal(t, "u1", doc.UserID)
	require.Len(t, doc.Plans, 1)
	assert.Equal(t, "p1", doc.Plans[0].ID)
	assert.Equal(t, domain.DefaultPlanTitle, doc.Plans[0].Title)
}

func TestExport_EmptyPlans(t *testing.T) {
	fs := newFakeStorage()
	out, err := NewPlanExporter(fs, 0).Export(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count)
	assert.JSONEq(t, `[]`, string(mustPlans(t, fs.objects[out.Key])))
}

func TestExport_PresignFailureRemovesObject(t *testing.T) {
	fs := newFakeStorage()
	fs.presignErr = errors.New("no credentials")
	_, err := NewPlanExporter(fs, time.Minute).Export(context.Background(), "u1", nil)
	require.Error(t, err)
	assert.Empty(t, fs.objects)
}

func TestExportKey_Unique(t *testing.T) {
	assert.NotEqual(t, ExportKey("u1"), ExportKey("u1"))
}

func mustPlans(t *testing.T, body []byte) json.RawMessage {
	t.Helper()
	var doc struct {
		Plans json.RawMessage `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(body, &doc))
	return doc.Plans
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://minio:9000", endpointURL("minio:9000", false))
	assert.Equal(t, "https://s3.example", endpointURL("s3.example", true))
	assert.Equal(t, "http://already", endpointURL("http://already", true))
}

package files

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkai-assistant/backend/internal/models"
	"github.com/arkai-assistant/backend/internal/subscription"
)

type fakeObjects struct {
	objects map[string][]byte
	deleted []string
	maxSize int64
	err     error
}

func (f *fakeObjects) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	if f.err != nil {
		return f.err
	}
	b, _ := io.ReadAll(body)
	f.objects[key] = b
	return nil
}

func (f *fakeObjects) DownloadURL(_ context.Context, key string) (string, error) {
	return "https://files.example/" + key, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

func (f *fakeObjects) MaxFileBytes() int64 { return f.maxSize }

type fakeStore struct {
	files     []models.StoredFile
	createErr error
}

func (s *fakeStore) Create(_ context.Context, f *models.StoredFile) error {
	if s.createErr != nil {
		return s.createErr
	}
	f.ID = uuid.New()
	s.files = append(s.files, *f)
	return nil
}

func (s *fakeStore) Recent(_ context.Context, orgID string, limit int) ([]models.StoredFile, error) {
	var out []models.StoredFile
	for i := len(s.files) - 1; i >= 0 && len(out) < limit; i-- {
		if s.files[i].OrgID == orgID {
			out = append(out, s.files[i])
		}
	}
	return out, nil
}

func (s *fakeStore) SearchName(_ context.Context, orgID, term string, limit int) ([]models.StoredFile, error) {
	var out []models.StoredFile
	for _, f := range s.files {
		if f.OrgID == orgID && strings.Contains(strings.ToLower(f.Filename), strings.ToLower(term)) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeStore) SearchKind(_ context.Context, orgID, kind string, limit int) ([]models.StoredFile, error) {
	var out []models.StoredFile
	for _, f := range s.files {
		if f.OrgID == orgID && (f.MediaType == kind || strings.HasSuffix(f.Filename, "."+kind)) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeStore) Stats(_ context.Context, orgID string) (Stats, error) {
	var st Stats
	for _, f := range s.files {
		if f.OrgID == orgID {
			st.Count++
			st.Bytes += f.SizeBytes
		}
	}
	return st, nil
}

type fakeQuota struct {
	deny     string
	recorded int64
}

func (q *fakeQuota) Check(context.Context, subscription.Resource, *models.Organization, int64) subscription.Decision {
	if q.deny != "" {
		return subscription.Deny(q.deny)
	}
	return subscription.Allow()
}

func (q *fakeQuota) Record(_ context.Context, _ subscription.Resource, _ *models.Organization, amount int64) error {
	q.recorded += amount
	return nil
}

func testOrg() *models.Organization {
	id := "Cgroup1"
	return &models.Organization{ID: uuid.New(), Plan: models.PlanFree, LineGroupID: &id}
}

func TestSaveStoresAndRecords(t *testing.T) {
	objects := &fakeObjects{objects: map[string][]byte{}, maxSize: 1024}
	store := &fakeStore{}
	quota := &fakeQuota{}
	svc := NewService(objects, store, quota, nil)

	f, link, err := svc.Save(context.Background(), testOrg(), Upload{Filename: "q3 report.pdf", MediaType: "file", Data: []byte("pdfdata")})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType)
	assert.True(t, strings.HasPrefix(f.ObjectKey, "Cgroup1/"))
	assert.True(t, strings.HasSuffix(f.ObjectKey, "-q3_report.pdf"))
	assert.Equal(t, "https://files.example/"+f.ObjectKey, link)
	assert.Equal(t, int64(7), quota.recorded)
	assert.Len(t, objects.objects, 1)
	assert.Contains(t, SavedReply(f, link), "ขนาด: 0.0 KB")
}

func TestSaveDefaultFilename(t *testing.T) {
	svc := NewService(&fakeObjects{objects: map[string][]byte{}, maxSize: 1024}, &fakeStore{}, &fakeQuota{}, nil)
	f, _, err := svc.Save(context.Background(), testOrg(), Upload{MediaType: "image", Data: []byte("x")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.Filename, "image_"))
	assert.True(t, strings.HasSuffix(f.Filename, ".jpg"))
	assert.Equal(t, "image/jpeg", f.ContentType)
}

func TestSaveRejectsLargeFile(t *testing.T) {
	quota := &fakeQuota{}
	svc := NewService(&fakeObjects{objects: map[string][]byte{}, maxSize: 4}, &fakeStore{}, quota, nil)
	_, _, err := svc.Save(context.Background(), testOrg(), Upload{Filename: "a.bin", Data: []byte("12345")})
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Zero(t, quota.recorded)
}

func TestSaveQuotaDenied(t *testing.T) {
	objects := &fakeObjects{objects: map[string][]byte{}, maxSize: 1024}
	svc := NewService(objects, &fakeStore{}, &fakeQuota{deny: "full"}, nil)
	_, _, err := svc.Save(context.Background(), testOrg(), Upload{Filename: "a.bin", Data: []byte("1")})
	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "full", qe.Message)
	assert.Empty(t, objects.objects)
}

func TestSaveMetadataFailureRemovesObject(t *testing.T) {
	objects := &fakeObjects{objects: map[string][]byte{}, maxSize: 1024}
	quota := &fakeQuota{}
	svc := NewService(objects, &fakeStore{createErr: errors.New("db down")}, quota, nil)
	_, _, err := svc.Save(context.Background(), testOrg(), Upload{Filename: "a.bin", Data: []byte("1")})
	assert.Error(t, err)
	assert.Len(t, objects.deleted, 1)
	assert.Empty(t, objects.objects)
	assert.Zero(t, quota.recorded)
}

func TestSaveWithoutStorage(t *testing.T) {
	svc := NewService(nil, &fakeStore{}, &fakeQuota{}, nil)
	assert.False(t, svc.Enabled())
	_, _, err := svc.Save(context.Background(), testOrg(), Upload{Data: []byte("1")})
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

func TestFindFallsBack(t *testing.T) {
	store := &fakeStore{files: []models.StoredFile{
		{OrgID: "o", Filename: "budget.xlsx", MediaType: "file"},
		{OrgID: "o", Filename: "photo.jpg", MediaType: "image"},
		{OrgID: "o", Filename: "spec.pdf", MediaType: "file"},
	}}
	svc := NewService(nil, store, &fakeQuota{}, nil)

	got, fallback, err := svc.Find(context.Background(), "o", "budget", 10)
	require.NoError(t, err)
	assert.False(t, fallback)
	require.Len(t, got, 1)

	got, fallback, err = svc.Find(context.Background(), "o", "image", 10)
	require.NoError(t, err)
	assert.False(t, fallback)
	require.Len(t, got, 1)
	assert.Equal(t, "photo.jpg", got[0].Filename)

	got, fallback, err = svc.Find(context.Background(), "o", "contract", 2)
	require.NoError(t, err)
	assert.True(t, fallback)
	assert.Len(t, got, 2)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "2.0 KB", FormatSize(2048))
	assert.Equal(t, "1.5 MB", FormatSize(3*1024*1024/2))
}

package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/internal/models"
	"github.com/arkai-assistant/backend/internal/subscription"
	"github.com/arkai-assistant/backend/pkg/storage"
)

// ErrTooLarge is returned for attachments over the per-file limit.
var ErrTooLarge = errors.New("file too large")

// ErrStorageDisabled is returned when no object store is configured.
var ErrStorageDisabled = errors.New("file storage disabled")

// QuotaError carries the user-facing denial when saving would exceed the plan's storage.
type QuotaError struct {
	Message string
}

func (e *QuotaError) Error() string { return "storage quota exceeded" }

// ObjectStore is the byte storage collaborator.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	DownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
	MaxFileBytes() int64
}

// Store is the metadata persistence the service needs.
type Store interface {
	Create(ctx context.Context, f *models.StoredFile) error
	Recent(ctx context.Context, orgID string, limit int) ([]models.StoredFile, error)
	SearchName(ctx context.Context, orgID, term string, limit int) ([]models.StoredFile, error)
	SearchKind(ctx context.Context, orgID, kind string, limit int) ([]models.StoredFile, error)
	Stats(ctx context.Context, orgID string) (Stats, error)
}

// Quota is the slice of the usage ledger used for storage.
type Quota interface {
	Check(ctx context.Context, resource subscription.Resource, org *models.Organization, incoming int64) subscription.Decision
	Record(ctx context.Context, resource subscription.Resource, org *models.Organization, amount int64) error
}

// Upload is one attachment to store.
type Upload struct {
	Filename    string
	ContentType string
	MediaType   string
	Data        []byte
}

// Service stores chat attachments under the org's storage quota.
type Service struct {
	objects ObjectStore
	store   Store
	quota   Quota
	now     func() time.Time
	logger  *zap.Logger
}

// NewService creates a file service. objects may be nil when storage is unconfigured.
func NewService(objects ObjectStore, store Store, quota Quota, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{objects: objects, store: store, quota: quota, now: time.Now, logger: logger}
}

// Enabled reports whether an object store is configured.
func (s *Service) Enabled() bool { return s.objects != nil }

// MaxFileBytes returns the per-file ceiling.
func (s *Service) MaxFileBytes() int64 {
	if s.objects == nil {
		return storage.DefaultMaxFileSize
	}
	return s.objects.MaxFileBytes()
}

// Save checks limits, uploads the bytes, records metadata and then consumes storage quota.
func (s *Service) Save(ctx context.Context, org *models.Organization, up Upload) (*models.StoredFile, string, error) {
	if s.objects == nil {
		return nil, "", ErrStorageDisabled
	}
	size := int64(len(up.Data))
	if size > s.objects.MaxFileBytes() {
		return nil, "", ErrTooLarge
	}
	if d := s.quota.Check(ctx, subscription.ResourceStorage, org, size); !d.Allowed {
		return nil, "", &QuotaError{Message: d.Message}
	}

	now := s.now()
	filename := up.Filename
	if filename == "" {
		filename = storage.DefaultFilename(up.MediaType, now)
	}
	contentType := up.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentTypeForFilename(filename)
	}
	orgID := org.ExternalID()
	key := storage.ObjectKey(orgID, filename, now)

	if err := s.objects.Upload(ctx, key, contentType, bytes.NewReader(up.Data), size); err != nil {
		return nil, "", fmt.Errorf("upload %s: %w", key, err)
	}
	f := &models.StoredFile{
		OrgID:       orgID,
		Filename:    filename,
		ObjectKey:   key,
		ContentType: contentType,
		MediaType:   up.MediaType,
		SizeBytes:   size,
	}
	if err := s.store.Create(ctx, f); err != nil {
		if derr := s.objects.DeleteObject(ctx, key); derr != nil {
			s.logger.Warn("orphaned object after metadata failure", zap.String("key", key), zap.Error(derr))
		}
		return nil, "", fmt.Errorf("save file metadata: %w", err)
	}
	_ = s.quota.Record(ctx, subscription.ResourceStorage, org, size)

	link, err := s.objects.DownloadURL(ctx, key)
	if err != nil {
		s.logger.Warn("presign download failed", zap.String("key", key), zap.Error(err))
	}
	s.logger.Info("file saved", zap.String("org", orgID), zap.String("key", key), zap.Int64("bytes", size))
	return f, link, nil
}

// Link returns a download link for f, or empty when unavailable.
func (s *Service) Link(ctx context.Context, f models.StoredFile) string {
	if s.objects == nil {
		return ""
	}
	link, err := s.objects.DownloadURL(ctx, f.ObjectKey)
	if err != nil {
		s.logger.Warn("presign download failed", zap.String("key", f.ObjectKey), zap.Error(err))
		return ""
	}
	return link
}

// Recent lists the newest files of the org.
func (s *Service) Recent(ctx context.Context, orgID string, limit int) ([]models.StoredFile, error) {
	return s.store.Recent(ctx, orgID, limit)
}

// Find searches by name first, then by kind, then falls back to the most recent files.
// The second return value reports whether the results are a fallback rather than a match.
func (s *Service) Find(ctx context.Context, orgID, query string, limit int) ([]models.StoredFile, bool, error) {
	found, err := s.store.SearchName(ctx, orgID, query, limit)
	if err != nil || len(found) > 0 {
		return found, false, err
	}
	found, err = s.store.SearchKind(ctx, orgID, query, limit)
	if err != nil || len(found) > 0 {
		return found, false, err
	}
	found, err = s.store.Recent(ctx, orgID, limit)
	return found, true, err
}

// Stats returns the org's file count and bytes.
func (s *Service) Stats(ctx context.Context, orgID string) (Stats, error) {
	return s.store.Stats(ctx, orgID)
}

// FormatSize renders a byte count as KB or MB.
func FormatSize(n int64) string {
	if n < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
}

// SavedReply is the chat answer to a successful auto-save.
func SavedReply(f *models.StoredFile, link string) string {
	msg := fmt.Sprintf("📁 เก็บไฟล์สำเร็จ\nชื่อ: %s\nขนาด: %s", f.Filename, FormatSize(f.SizeBytes))
	if link != "" {
		msg += "\nลิงก์: " + link
	}
	return msg
}

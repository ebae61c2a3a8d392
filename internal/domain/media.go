package domain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hyperengineering/stitchbook/internal/objstore"
	"github.com/hyperengineering/stitchbook/internal/types"
)

// MaxMediaSize caps a single upload at 5 MB.
const MaxMediaSize = 5 * 1024 * 1024

// Media manages design photos and sketches attached to customers and
// orders. File bytes go to object storage; the record keeps the file id
// and a download URL.
type Media struct {
	sync   Syncer
	bucket objstore.Bucket
}

func NewMedia(sync Syncer, bucket objstore.Bucket) *Media {
	return &Media{sync: sync, bucket: bucket}
}

// Attach validates and uploads an image, then records it against the
// given owner (a customer or order id). Only image content types are
// accepted.
func (m *Media) Attach(ctx context.Context, ownerID, name string, r io.Reader, size int64, contentType string) (types.Record, error) {
	if ownerID == "" {
		return types.Record{}, errRequired("ownerId")
	}
	if size <= 0 {
		return types.Record{}, &ValidationError{Field: "size", Reason: "empty file"}
	}
	if size > MaxMediaSize {
		return types.Record{}, &ValidationError{
			Field:  "size",
			Reason: fmt.Sprintf("%d bytes exceeds the %d byte limit", size, MaxMediaSize),
		}
	}
	if !strings.HasPrefix(contentType, "image/") {
		return types.Record{}, &ValidationError{Field: "contentType", Reason: "only images are accepted, got " + contentType}
	}

	info, err := m.bucket.Upload(ctx, name, r, size, contentType)
	if err != nil {
		return types.Record{}, fmt.Errorf("upload media: %w", err)
	}

	rec, err := m.sync.Create(ctx, types.CollectionMedia, map[string]any{
		"ownerId":     ownerID,
		"name":        name,
		"fileId":      info.FileID,
		"url":         info.URL,
		"size":        size,
		"contentType": contentType,
	})
	if err != nil {
		// The record is the source of truth; an orphaned object is
		// cleaned up immediately rather than leaked.
		if rmErr := m.bucket.Remove(ctx, info.FileID); rmErr != nil {
			slog.Error("failed to remove orphaned media object",
				"component", "media",
				"file_id", info.FileID,
				"error", rmErr,
			)
		}
		return types.Record{}, err
	}
	return rec, nil
}

// Detach deletes the media record and its stored object.
func (m *Media) Detach(ctx context.Context, id string) error {
	records, err := m.sync.Fetch(ctx, types.CollectionMedia)
	if err != nil {
		return err
	}
	fileID := ""
	for _, rec := range records {
		if rec.ID == id {
			fileID = rec.StringField("fileId")
			break
		}
	}

	if err := m.sync.Delete(ctx, types.CollectionMedia, id); err != nil {
		return err
	}
	if fileID == "" {
		return nil
	}
	if err := m.bucket.Remove(ctx, fileID); err != nil {
		slog.Warn("failed to remove media object",
			"component", "media",
			"file_id", fileID,
			"error", err,
		)
	}
	return nil
}

// ForOwner returns the media attached to a customer or order.
func (m *Media) ForOwner(ctx context.Context, ownerID string) ([]types.Record, error) {
	records, err := m.sync.Fetch(ctx, types.CollectionMedia)
	if err != nil {
		return nil, err
	}
	matched := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if rec.StringField("ownerId") == ownerID {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

// FreshURL mints a new presigned download URL for a stored object.
func (m *Media) FreshURL(ctx context.Context, id string) (string, error) {
	records, err := m.sync.Fetch(ctx, types.CollectionMedia)
	if err != nil {
		return "", err
	}
	for _, rec := range records {
		if rec.ID == id {
			url, _, err := m.bucket.PresignedURL(ctx, rec.StringField("fileId"))
			return url, err
		}
	}
	return "", &ValidationError{Field: "id", Reason: "unknown media record " + id}
}

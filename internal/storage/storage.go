// Package storage provides file storage abstraction for FluentBridge.
//
// This package defines a Storage interface with implementations for:
// - LocalStorage: File system storage for development
// - R2Storage: Cloudflare R2 (S3-compatible) storage for production
//
// The storage service handles uploading chat attachments (images, audio
// clips, documents) with automatic content type detection and validation.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the interface for attachment blob operations.
//
// Implementations:
// - LocalStorage: Stores attachments on the local filesystem
// - R2Storage: Stores attachments in Cloudflare R2 object storage
//
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores an attachment at the key. Keys are unique per upload
	// (see AttachmentKey), so an existing object at the key is replaced.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get opens the attachment at the key for reading. The caller must
	// close the returned reader. Returns ErrNotFound for unknown keys.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the attachment at the key. Idempotent: deleting an
	// unknown key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for downloading the attachment. Attachments are
	// private, so R2 issues a presigned URL valid for the given duration;
	// local storage serves from its public base URL and ignores expires.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an attachment is stored at the key.
	Exists(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an attachment is stored.
type PutOptions struct {
	// ContentType specifies the MIME type of the attachment.
	// If empty, it will be auto-detected from the key's extension.
	ContentType string

	// MaxSize caps the attachment size in bytes; data beyond the cap
	// yields ErrTooLarge. A value of 0 means no limit.
	MaxSize int64
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string    // Object key/path
	Size         int64     // Size in bytes
	ContentType  string    // MIME type
	LastModified time.Time // Last modification time
	ETag         string    // Entity tag (if available)
}

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	// Example: "./storage" or "/var/lib/fluentbridge/files"
	BasePath string

	// BaseURL is the public URL prefix for accessing files.
	// Example: "http://localhost:8080/files"
	BaseURL string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	// AccountID is your Cloudflare account ID.
	AccountID string

	// AccessKeyID is the R2 API access key ID.
	AccessKeyID string

	// SecretAccessKey is the R2 API secret key.
	SecretAccessKey string

	// BucketName is the name of the R2 bucket to use.
	BucketName string

	// PublicURL is the public URL for the bucket (if using a custom domain).
	// Example: "https://files.fluentbridge.app"
	// If empty, presigned URLs will be used for all access.
	PublicURL string

	// Region is the AWS region to use (required by AWS SDK).
	// For R2, this can be any valid region string as R2 is globally distributed.
	// Default: "auto"
	Region string
}

// =============================================================================
// Provider Constants
// =============================================================================

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderR2 identifies the Cloudflare R2 storage provider.
	ProviderR2 = "r2"
)

// =============================================================================
// Key Generation Helpers
// =============================================================================

// AttachmentKey generates a storage key for an uploaded chat attachment.
// Format: attachments/{userID}/{uuid}.{ext}
//
// Parameters:
//   - userID: UUID of the uploading user
//   - ext: File extension including the dot (e.g. ".jpg"), may be empty
//
// Example: "attachments/123e4567-e89b-12d3-a456-426614174000/987fcdeb-51a2-43f1-b9c4-12345678abcd.jpg"
func AttachmentKey(userID uuid.UUID, ext string) string {
	attachmentID := uuid.New()
	return fmt.Sprintf("attachments/%s/%s%s", userID, attachmentID, ext)
}

// VoiceNoteKey generates a storage key for a recorded voice note.
// Format: attachments/{userID}/voice/{uuid}.{ext}
//
// Parameters:
//   - userID: UUID of the recording user
//   - ext: Audio container extension including the dot (e.g. ".webm")
//
// Example: "attachments/123e4567-e89b-12d3-a456-426614174000/voice/987fcdeb-51a2-43f1-b9c4-12345678abcd.webm"
func VoiceNoteKey(userID uuid.UUID, ext string) string {
	noteID := uuid.New()
	return fmt.Sprintf("attachments/%s/voice/%s%s", userID, noteID, ext)
}

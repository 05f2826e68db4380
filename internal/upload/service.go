// Package upload signs direct-to-bucket uploads of video and thumbnail blobs
// on R2 (S3-compatible) storage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/onnwee/reelcast/internal/apperr"
	"github.com/onnwee/reelcast/internal/authz"
)

// Allowed MIME types for uploads
const (
	MIMEVideoMP4       = "video/mp4"
	MIMEVideoWebM      = "video/webm"
	MIMEVideoQuickTime = "video/quicktime"
	MIMEImageJPEG      = "image/jpeg"
	MIMEImagePNG       = "image/png"
	MIMEImageWebP      = "image/webp"
)

// Validation errors. Both wrap apperr.ErrValidation.
var (
	ErrUnsupportedType = apperr.Validation("unsupported content type")
	ErrFileTooLarge    = apperr.Validation("file size exceeds maximum allowed")
)

// AllowedMIMETypes maps allowed MIME types to their file extensions
var AllowedMIMETypes = map[string]string{
	MIMEVideoMP4:       ".mp4",
	MIMEVideoWebM:      ".webm",
	MIMEVideoQuickTime: ".mov",
	MIMEImageJPEG:      ".jpg",
	MIMEImagePNG:       ".png",
	MIMEImageWebP:      ".webp",
}

// IsVideo reports whether contentType is one of the video types.
func IsVideo(contentType string) bool {
	return strings.HasPrefix(contentType, "video/")
}

// SignedURLRequest asks for a presigned PUT URL.
type SignedURLRequest struct {
	ContentType string `json:"content_type" validate:"required"`
	SizeBytes   int64  `json:"size_bytes" validate:"required,gt=0"`
}

// SignedURLResponse represents the response containing the signed URL and metadata.
type SignedURLResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	PublicURL string    `json:"public_url,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service handles generating signed URLs for R2 uploads.
type Service struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	publicBaseURL string
	maxVideoBytes int64
	maxImageBytes int64
	urlExpiry     time.Duration
	timeNow       func() time.Time
}

// ServiceConfig holds configuration for the upload service.
type ServiceConfig struct {
	BucketName       string
	AccessKeyID      string
	SecretAccessKey  string
	Endpoint         string
	PublicBaseURL    string // optional CDN prefix for PublicURL
	MaxVideoMB       int    // default 100
	MaxImageMB       int    // default 10
	URLExpiryMinutes int    // default 15
}

// NewService creates a new upload service with the given configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.BucketName == "":
		return nil, errors.New("bucket name is required")
	case cfg.AccessKeyID == "":
		return nil, errors.New("access key ID is required")
	case cfg.SecretAccessKey == "":
		return nil, errors.New("secret access key is required")
	case cfg.Endpoint == "":
		return nil, errors.New("endpoint is required")
	}
	if cfg.MaxVideoMB <= 0 {
		cfg.MaxVideoMB = 100
	}
	if cfg.MaxImageMB <= 0 {
		cfg.MaxImageMB = 10
	}
	if cfg.URLExpiryMinutes <= 0 {
		cfg.URLExpiryMinutes = 15
	}

	s3Client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true, // R2 requires path-style addressing
	})

	return &Service{
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    cfg.BucketName,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxVideoBytes: int64(cfg.MaxVideoMB) << 20,
		maxImageBytes: int64(cfg.MaxImageMB) << 20,
		urlExpiry:     time.Duration(cfg.URLExpiryMinutes) * time.Minute,
		timeNow:       time.Now,
	}, nil
}

// ValidateContentType checks if the content type is allowed.
func ValidateContentType(contentType string) error {
	if _, ok := AllowedMIMETypes[contentType]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// ValidateFileSize checks sizeBytes against the limit for contentType.
func (s *Service) ValidateFileSize(contentType string, sizeBytes int64) error {
	if sizeBytes <= 0 {
		return apperr.Validation("file size must be positive")
	}
	limit := s.maxImageBytes
	if IsVideo(contentType) {
		limit = s.maxVideoBytes
	}
	if sizeBytes > limit {
		return ErrFileTooLarge
	}
	return nil
}

// GenerateObjectKey creates a unique object key.
// Pattern: videos/{userID}/{uuid}.ext or thumbnails/{userID}/{uuid}.ext
func GenerateObjectKey(contentType, userID string) (string, error) {
	ext, ok := AllowedMIMETypes[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	owner := sanitizePathComponent(userID)
	if owner == "" {
		return "", apperr.Validation("invalid user id")
	}
	folder := "thumbnails"
	if IsVideo(contentType) {
		folder = "videos"
	}
	return fmt.Sprintf("%s/%s/%s%s", folder, owner, uuid.New().String(), ext), nil
}

// sanitizePathComponent keeps only alphanumerics, hyphens and underscores.
func sanitizePathComponent(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// GenerateSignedURL returns a presigned PUT URL for an authenticated caller.
func (s *Service) GenerateSignedURL(ctx context.Context, caller authz.Caller, req SignedURLRequest) (*SignedURLResponse, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	if err := ValidateContentType(req.ContentType); err != nil {
		return nil, err
	}
	if err := s.ValidateFileSize(req.ContentType, req.SizeBytes); err != nil {
		return nil, err
	}
	key, err := GenerateObjectKey(req.ContentType, caller.UserID)
	if err != nil {
		return nil, err
	}

	presigned, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		ContentType:   aws.String(req.ContentType),
		ContentLength: aws.Int64(req.SizeBytes),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.urlExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign request: %w", err)
	}

	resp := &SignedURLResponse{
		URL:       presigned.URL,
		Key:       key,
		ExpiresAt: s.timeNow().Add(s.urlExpiry),
	}
	if s.publicBaseURL != "" {
		resp.PublicURL = s.publicBaseURL + "/" + key
	}
	return resp, nil
}

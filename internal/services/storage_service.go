// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/couponx-backend/internal/config"
	"github.com/javajoker/couponx-backend/internal/utils"
)

var proofImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// StorageService stores listing proof images in S3. Without AWS
// credentials it only derives a local URL, for development.
type StorageService struct {
	s3Client *s3.S3
	config   config.AWSConfig
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

func NewStorageService(cfg config.AWSConfig) (*StorageService, error) {
	if cfg.AccessKeyID == "" {
		return &StorageService{config: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

// UploadProofImage validates and stores a proof image for listingID.
func (s *StorageService) UploadProofImage(ctx context.Context, listingID uuid.UUID, file multipart.File, header *multipart.FileHeader) (*UploadResult, error) {
	if s.config.MaxUploadBytes > 0 && header.Size > s.config.MaxUploadBytes {
		return nil, utils.NewInvalid(fmt.Sprintf("file size %d bytes exceeds maximum allowed size %d bytes", header.Size, s.config.MaxUploadBytes))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := proofImageTypes[ext]; !ok {
		return nil, utils.NewInvalid(fmt.Sprintf("file type %s is not allowed", ext))
	}

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, utils.NewInternal("failed to read upload", err)
	}

	contentType := http.DetectContentType(fileBytes)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, utils.NewInvalid("file content is not an image")
	}

	key := fmt.Sprintf("proof-images/%s/%s_%s%s",
		listingID.String(), time.Now().UTC().Format("20060102"), uuid.NewString()[:8], ext)

	if s.s3Client == nil {
		logrus.WithField("key", key).Info("S3 not configured; proof image kept as local reference")
		return &UploadResult{
			URL:      "/uploads/" + key,
			Key:      key,
			Size:     int64(len(fileBytes)),
			MimeType: contentType,
		}, nil
	}

	_, err = s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(fileBytes),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(fileBytes))),
	})
	if err != nil {
		return nil, utils.NewInternal("failed to upload to S3", err)
	}

	return &UploadResult{
		URL:      s.objectURL(key),
		Key:      key,
		Size:     int64(len(fileBytes)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) DeleteObject(ctx context.Context, key string) error {
	if s.s3Client == nil {
		return nil
	}

	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

func (s *StorageService) objectURL(key string) string {
	if s.config.CloudFrontURL != "" {
		return strings.TrimRight(s.config.CloudFrontURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.config.S3Bucket, s.config.Region, key)
}

package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/parleyhq/parley/internal/common"
	sc "github.com/parleyhq/parley/internal/server/config"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// AttachmentService issues time-limited upload/download authorizations
// against the object store. The message path only ever carries object keys;
// binary payloads move directly between clients and the store.
type AttachmentService struct {
	config *sc.Config
}

func NewAttachmentService(config *sc.Config) *AttachmentService {
	return &AttachmentService{config: config}
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// MakeStorageKey builds a collision-resistant object key from the original
// file name. Names carrying path separators or parent references are
// rejected outright.
func MakeStorageKey(fileName string) (string, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return "", fmt.Errorf("%w: file name is required", common.ErrValidation)
	}
	if strings.ContainsAny(fileName, `/\`) || strings.Contains(fileName, "..") {
		return "", fmt.Errorf("%w: file name must not contain path separators", common.ErrValidation)
	}

	safe := unsafeKeyChars.ReplaceAllString(fileName, "_")
	d := time.Now().UTC()
	return fmt.Sprintf("attachments/%d/%02d/%02d/%v-%s", d.Year(), d.Month(), d.Day(), uuid.New(), safe), nil
}

func (s *AttachmentService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,     // MINIO_ROOT_USER
			s.config.S3RootPassword, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// IssueUpload returns a stable object key and a short-lived presigned PUT
// URL for it.
func (s *AttachmentService) IssueUpload(ctx context.Context, fileName, contentType string) (string, string, error) {
	key, err := MakeStorageKey(fileName)
	if err != nil {
		return "", "", err
	}

	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	in := &s3.PutObjectInput{Bucket: &bucket, Key: &key}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := presignPutObject(presignClient, ctx, in,
		s3.WithPresignExpires(s.config.UploadURLValidity))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// IssueDownload returns a presigned GET URL for an existing object key.
// Download authorizations live longer than upload ones.
func (s *AttachmentService) IssueDownload(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: invalid object key", common.ErrValidation)
	}

	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.DownloadURLValidity))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}

package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/techagentng/quizchat/config"
	apiError "github.com/techagentng/quizchat/errors"
	"github.com/techagentng/quizchat/models"
)

const (
	MaxFileSize    = 10 * 1024 * 1024 // 10 MB
	MaxFilesPerReq = 10
	thumbnailSize  = 161
)

var allowedMimeTypes = []string{
	"image/jpeg", "image/png", "image/gif", "image/webp",
	"video/mp4", "video/quicktime",
	"audio/mpeg", "audio/mp4", "audio/wav",
	"application/pdf", "text/plain",
}

// ObjectStore stores a blob and returns its public URL.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type S3Store struct {
	client *s3.Client
	bucket string
	region string
}

func NewS3Store(ctx context.Context, conf *config.Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(conf.AWSRegion)}
	if conf.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			conf.AWSAccessKeyID,
			conf.AWSSecretKey,
			"",
		)))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: conf.AWSBucket,
		region: conf.AWSRegion,
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", errors.Wrapf(err, "put object %s", key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

type MediaService interface {
	Upload(ctx context.Context, fileHeader *multipart.FileHeader, folder string) (*models.UploadedFile, *apiError.Error)
	UploadMany(ctx context.Context, fileHeaders []*multipart.FileHeader, folder string) ([]models.UploadedFile, *apiError.Error)
}

type mediaService struct {
	store  ObjectStore
	logger zerolog.Logger
}

func NewMediaService(store ObjectStore, logger zerolog.Logger) MediaService {
	return &mediaService{
		store:  store,
		logger: logger.With().Str("service", "media").Logger(),
	}
}

func readUpload(fileHeader *multipart.FileHeader) ([]byte, *apiError.Error) {
	if fileHeader.Size > MaxFileSize {
		return nil, apiError.Validation(fmt.Sprintf("file size exceeds limit of %d bytes", MaxFileSize))
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, apiError.Validation("unable to read uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
	if err != nil {
		return nil, apiError.Validation("unable to read uploaded file")
	}
	if len(data) == 0 {
		return nil, apiError.Validation("file is empty")
	}
	if len(data) > MaxFileSize {
		return nil, apiError.Validation(fmt.Sprintf("file size exceeds limit of %d bytes", MaxFileSize))
	}
	return data, nil
}

// thumbnail returns a small JPEG for decodable images, nil otherwise.
func thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Thumbnail(img, thumbnailSize, thumbnailSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *mediaService) Upload(ctx context.Context, fileHeader *multipart.FileHeader, folder string) (*models.UploadedFile, *apiError.Error) {
	data, apiErr := readUpload(fileHeader)
	if apiErr != nil {
		return nil, apiErr
	}

	mtype := mimetype.Detect(data)
	contentType := mtype.String()
	if !mimetype.EqualsAny(contentType, allowedMimeTypes...) {
		return nil, apiError.Validation(fmt.Sprintf("invalid file type: %s", contentType))
	}

	name := uuid.NewString()
	key := path.Join(folder, name+mtype.Extension())
	url, err := m.store.Upload(ctx, key, data, contentType)
	if err != nil {
		m.logger.Error().Err(err).Str("key", key).Msg("upload failed")
		return nil, apiError.Storage("upload file")
	}

	uploaded := &models.UploadedFile{
		URL:         url,
		FileName:    fileHeader.Filename,
		FileSize:    int64(len(data)),
		ContentType: contentType,
	}

	if mimetype.EqualsAny(contentType, "image/jpeg", "image/png", "image/gif") {
		thumb, err := thumbnail(data)
		if err != nil {
			m.logger.Warn().Err(err).Str("key", key).Msg("thumbnail not generated")
			return uploaded, nil
		}
		thumbKey := path.Join(folder, "thumbnails", name+".jpg")
		thumbURL, err := m.store.Upload(ctx, thumbKey, thumb, "image/jpeg")
		if err != nil {
			m.logger.Warn().Err(err).Str("key", thumbKey).Msg("thumbnail upload failed")
			return uploaded, nil
		}
		uploaded.ThumbnailURL = thumbURL
	}
	return uploaded, nil
}

func (m *mediaService) UploadMany(ctx context.Context, fileHeaders []*multipart.FileHeader, folder string) ([]models.UploadedFile, *apiError.Error) {
	if len(fileHeaders) == 0 {
		return nil, apiError.Validation("no files uploaded")
	}
	if len(fileHeaders) > MaxFilesPerReq {
		return nil, apiError.Validation(fmt.Sprintf("at most %d files per request", MaxFilesPerReq))
	}
	uploaded := make([]models.UploadedFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, apiErr := m.Upload(ctx, fh, folder)
		if apiErr != nil {
			return nil, apiErr
		}
		uploaded = append(uploaded, *f)
	}
	return uploaded, nil
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"genico/internal/domain"
	"genico/internal/repository"
	"genico/pkg/utils"
)

type IconService interface {
	Convert(ctx context.Context, file *domain.UploadedFile) *domain.Result
}

type iconService struct {
	staging repository.StagingRepository
	log     *zap.Logger
	proc    *utils.ImageProcessor
}

func NewIconService(staging repository.StagingRepository, log *zap.Logger) IconService {
	return &iconService{
		staging: staging,
		log:     log,
		proc:    utils.NewImageProcessor(log),
	}
}

// Convert stages the upload, decodes it, validates it and encodes the icon.
// The staged copy is removed before Convert returns, whatever the outcome.
func (s *iconService) Convert(ctx context.Context, file *domain.UploadedFile) *domain.Result {
	if file == nil || file.Name == "" || len(file.Data) == 0 {
		return failure(domain.MalformedRequest, nil, nil)
	}

	key := uuid.New().String()
	if err := s.staging.Put(ctx, key, bytes.NewReader(file.Data), int64(len(file.Data))); err != nil {
		s.log.Error("Failed to stage upload", zap.String("key", key), zap.Error(err))
		return failure(domain.ProcessingFailure, nil, fmt.Errorf("failed to stage upload: %w", err))
	}
	defer func() {
		if err := s.staging.Delete(context.WithoutCancel(ctx), key); err != nil {
			s.log.Warn("Failed to remove staged upload", zap.String("key", key), zap.Error(err))
		}
	}()

	data, err := s.readStaged(ctx, key)
	if err != nil {
		return failure(domain.ProcessingFailure, nil, err)
	}

	img, err := s.proc.Decode(data)
	if err != nil {
		s.log.Info("Upload is not a decodable image",
			zap.String("filename", file.Name),
			zap.Error(err))
		return failure(domain.ProcessingFailure, nil, err)
	}

	if warnings := Validate(img.Format, file.Name, img.Width, img.Height); len(warnings) > 0 {
		s.log.Info("Upload rejected by validation",
			zap.String("filename", file.Name),
			zap.String("format", img.Format),
			zap.Int("width", img.Width),
			zap.Int("height", img.Height),
			zap.Strings("warnings", warnings))
		return failure(domain.ValidationWarning, warnings, nil)
	}

	data, err = s.proc.EncodeIcon(img)
	if err != nil {
		s.log.Error("Failed to encode icon", zap.String("filename", file.Name), zap.Error(err))
		return failure(domain.ProcessingFailure, nil, err)
	}

	icon := &domain.IconOutput{
		Filename: IconFilename(file.Name),
		Data:     data,
	}

	s.log.Info("Icon generated",
		zap.String("filename", file.Name),
		zap.String("icon", icon.Filename),
		zap.Int("size", len(icon.Data)))

	return &domain.Result{Icon: icon}
}

func (s *iconService) readStaged(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.staging.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open staged upload: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged upload: %w", err)
	}
	return data, nil
}

// IconFilename swaps the extension of the uploaded name for ".ico".
func IconFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		base = ""
	}
	base = strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, base)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".ico"
}

func failure(kind domain.FailureKind, warnings []string, err error) *domain.Result {
	return &domain.Result{Failure: &domain.Failure{Kind: kind, Warnings: warnings, Err: err}}
}

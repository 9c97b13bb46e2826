package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"reflect"
	"testing"

	ico "github.com/sergeymakinen/go-ico"
	"go.uber.org/zap"

	"genico/internal/domain"
	"genico/internal/repository"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

func newDiskService(t *testing.T) (IconService, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := repository.NewDiskRepository(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDiskRepository: %v", err)
	}
	return NewIconService(repo, zap.NewNop()), dir
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("staging directory not cleaned: %d entries left", len(entries))
	}
}

func TestConvertSuccess(t *testing.T) {
	svc, dir := newDiskService(t)

	result := svc.Convert(context.Background(), &domain.UploadedFile{Name: "logo.png", Data: encodePNG(t, 300, 300)})
	if result.Failure != nil {
		t.Fatalf("unexpected failure: %v", result.Failure)
	}
	if result.Icon.Filename != "logo.ico" {
		t.Errorf("Filename = %q, want %q", result.Icon.Filename, "logo.ico")
	}
	if result.Icon.MimeType() != "image/x-icon" {
		t.Errorf("MimeType = %q", result.Icon.MimeType())
	}

	images, err := ico.DecodeAll(bytes.NewReader(result.Icon.Data))
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(images) != len(domain.IconSizes) {
		t.Fatalf("got %d images, want %d", len(images), len(domain.IconSizes))
	}

	assertEmptyDir(t, dir)
}

func TestConvertFailures(t *testing.T) {
	tests := []struct {
		name     string
		file     *domain.UploadedFile
		kind     domain.FailureKind
		warnings []string
		err      error
	}{
		{
			name: "empty payload",
			file: &domain.UploadedFile{Name: "logo.png"},
			kind: domain.MalformedRequest,
		},
		{
			name: "empty filename",
			file: &domain.UploadedFile{Data: []byte("x")},
			kind: domain.MalformedRequest,
		},
		{
			name:     "too small",
			file:     &domain.UploadedFile{Name: "small.png", Data: encodePNG(t, 128, 128)},
			kind:     domain.ValidationWarning,
			warnings: []string{WarnSize},
		},
		{
			name:     "jpeg renamed",
			file:     &domain.UploadedFile{Name: "photo.png", Data: encodeJPEG(t, 300, 200)},
			kind:     domain.ValidationWarning,
			warnings: []string{WarnFormat, WarnSquare, WarnSize},
		},
		{
			name: "not an image",
			file: &domain.UploadedFile{Name: "logo.png", Data: []byte("definitely not a png")},
			kind: domain.ProcessingFailure,
			err:  domain.ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, dir := newDiskService(t)

			result := svc.Convert(context.Background(), tt.file)
			if result.Icon != nil || result.Failure == nil {
				t.Fatalf("expected failure, got %+v", result)
			}
			if result.Failure.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", result.Failure.Kind, tt.kind)
			}
			if !reflect.DeepEqual(result.Failure.Warnings, tt.warnings) {
				t.Errorf("Warnings = %q, want %q", result.Failure.Warnings, tt.warnings)
			}
			if tt.err != nil && !errors.Is(result.Failure, tt.err) {
				t.Errorf("error %v does not wrap %v", result.Failure, tt.err)
			}

			assertEmptyDir(t, dir)
		})
	}
}

func TestConvertIsDeterministic(t *testing.T) {
	svc := NewIconService(repository.NewMemoryRepository(), zap.NewNop())
	data := encodePNG(t, 256, 256)

	first := svc.Convert(context.Background(), &domain.UploadedFile{Name: "a.png", Data: data})
	second := svc.Convert(context.Background(), &domain.UploadedFile{Name: "a.png", Data: data})
	if first.Failure != nil || second.Failure != nil {
		t.Fatalf("unexpected failure: %v / %v", first.Failure, second.Failure)
	}
	if !bytes.Equal(first.Icon.Data, second.Icon.Data) {
		t.Error("icon output differs between identical uploads")
	}
}

type failingRepository struct {
	repository.StagingRepository
	deleted int
}

func (r *failingRepository) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("backend unavailable")
}

func (r *failingRepository) Delete(ctx context.Context, key string) error {
	r.deleted++
	return r.StagingRepository.Delete(ctx, key)
}

func TestConvertCleansUpWhenStagingFails(t *testing.T) {
	repo := &failingRepository{StagingRepository: repository.NewMemoryRepository()}
	svc := NewIconService(repo, zap.NewNop())

	result := svc.Convert(context.Background(), &domain.UploadedFile{Name: "logo.png", Data: encodePNG(t, 256, 256)})
	if result.Failure == nil || result.Failure.Kind != domain.ProcessingFailure {
		t.Fatalf("expected processing failure, got %+v", result)
	}
	if repo.deleted != 1 {
		t.Errorf("Delete called %d times, want 1", repo.deleted)
	}
}

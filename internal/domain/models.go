package domain

import (
	"errors"
	"image"
)

const (
	IconMimeType    = "image/x-icon"
	DefaultFilename = "uploaded.png"
)

// IconSizes lists the square sizes embedded in every generated icon, largest first.
var IconSizes = []int{256, 128, 48, 32, 16}

var (
	ErrDecode   = errors.New("failed to read image")
	ErrEncoding = errors.New("failed to encode icon")
)

type UploadedFile struct {
	Name string
	Data []byte
}

type DecodedImage struct {
	Format   string
	Width    int
	Height   int
	Image    image.Image
	HasAlpha bool
}

type IconOutput struct {
	Filename string
	Data     []byte
}

func (o *IconOutput) MimeType() string {
	return IconMimeType
}

type FailureKind int

const (
	MalformedRequest FailureKind = iota
	ValidationWarning
	ProcessingFailure
)

func (k FailureKind) String() string {
	switch k {
	case MalformedRequest:
		return "malformed_request"
	case ValidationWarning:
		return "validation_warning"
	case ProcessingFailure:
		return "processing_failure"
	}
	return "unknown"
}

// Failure describes why a conversion did not produce an icon.
type Failure struct {
	Kind     FailureKind
	Warnings []string
	Err      error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return f.Err.Error()
	}
	if len(f.Warnings) > 0 {
		return f.Warnings[0]
	}
	return f.Kind.String()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Result carries either an icon or a failure, never both.
type Result struct {
	Icon    *IconOutput
	Failure *Failure
}

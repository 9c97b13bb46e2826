package service

import (
	"path/filepath"
	"strings"
)

const MinIconSize = 256

const (
	WarnFormat = "PNG-only format supported."
	WarnSquare = "image must be square (1:1 aspect ratio)."
	WarnSize   = "image size of at least 256px is recommended."
)

// Validate checks upload metadata and returns every rule that fails, in rule order.
// An empty result means the image can be converted.
func Validate(format, filename string, width, height int) []string {
	var warnings []string

	if !strings.EqualFold(filepath.Ext(filename), ".png") || !strings.EqualFold(format, "png") {
		warnings = append(warnings, WarnFormat)
	}
	if width != height {
		warnings = append(warnings, WarnSquare)
	}
	if width < MinIconSize || height < MinIconSize {
		warnings = append(warnings, WarnSize)
	}

	return warnings
}

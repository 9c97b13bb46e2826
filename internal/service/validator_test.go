package service

import (
	"reflect"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		filename string
		width    int
		height   int
		want     []string
	}{
		{"valid", "png", "logo.png", 256, 256, nil},
		{"valid large", "png", "logo.png", 1024, 1024, nil},
		{"uppercase extension", "png", "LOGO.PNG", 512, 512, nil},
		{"too small", "png", "logo.png", 128, 128, []string{WarnSize}},
		{"not square", "png", "logo.png", 300, 256, []string{WarnSquare}},
		{"jpeg renamed", "jpeg", "photo.png", 300, 200, []string{WarnFormat, WarnSquare, WarnSize}},
		{"wrong extension", "png", "logo.jpg", 256, 256, []string{WarnFormat}},
		{"no extension", "png", "logo", 256, 256, []string{WarnFormat}},
		{"small jpeg", "jpeg", "a.jpg", 100, 200, []string{WarnFormat, WarnSquare, WarnSize}},
		{"zero size", "png", "logo.png", 0, 0, []string{WarnSize}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.format, tt.filename, tt.width, tt.height)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Validate(%q, %q, %d, %d) = %q, want %q",
					tt.format, tt.filename, tt.width, tt.height, got, tt.want)
			}
		})
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	first := Validate("gif", "a.gif", 10, 20)
	second := Validate("gif", "a.gif", 10, 20)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ: %q vs %q", first, second)
	}
}

func TestIconFilename(t *testing.T) {
	tests := map[string]string{
		"logo.png":          "logo.ico",
		"my.logo.png":       "my.logo.ico",
		"noext":             "noext.ico",
		"dir/sub/logo.png":  "logo.ico",
		`C:\Users\me\a.png`: "a.ico",
		`we"ird.png`:        "weird.ico",
	}
	for in, want := range tests {
		if got := IconFilename(in); got != want {
			t.Errorf("IconFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

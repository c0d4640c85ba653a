package storage

import (
	"strings"
	"testing"
)

func TestImageObjectKey16Hex(t *testing.T) {
	hash := "0123456789abcdef"
	got := ImageObjectKey(hash)
	want := "0123/4567/89ab/cdef/0123456789abcdef.jpg"
	if got != want {
		t.Errorf("ImageObjectKey(%s) = %s, want %s", hash, got, want)
	}
}

func TestImageObjectKey32Hex(t *testing.T) {
	hash := strings.Repeat("0123456789abcdef", 2)
	got := ImageObjectKey(hash)
	// Seven directory levels cover the first 28 chars; the rest appears
	// only in the file name.
	want := "0123/4567/89ab/cdef/0123/4567/89ab/" + hash + ".jpg"
	if got != want {
		t.Errorf("ImageObjectKey = %s, want %s", got, want)
	}
}

func TestVideoObjectKey(t *testing.T) {
	hash := strings.Repeat("abcd", 16) // 64 hex chars
	got := VideoObjectKey(hash)
	if !strings.HasSuffix(got, "/"+hash+".mp4") {
		t.Fatalf("VideoObjectKey = %s, want suffix /%s.mp4", got, hash)
	}
	// 64 hex chars split into 4-char segments omitting the final one.
	dirs := strings.Split(got, "/")
	if len(dirs) != 16 { // 15 directory levels + file name
		t.Errorf("got %d path components, want 16: %s", len(dirs), got)
	}
	for _, d := range dirs[:len(dirs)-1] {
		if d != "abcd" {
			t.Errorf("unexpected segment %q", d)
		}
	}
}

func TestScreenshotObjectKey(t *testing.T) {
	if got := ScreenshotObjectKey(12345); got != "12345.png" {
		t.Errorf("ScreenshotObjectKey(12345) = %s", got)
	}
}

func TestPathDerivationIsPure(t *testing.T) {
	hash := "0123456789abcdef"
	if ImageObjectKey(hash) != ImageObjectKey(hash) {
		t.Error("ImageObjectKey is not deterministic")
	}
	if VideoObjectKey(hash) != VideoObjectKey(hash) {
		t.Error("VideoObjectKey is not deterministic")
	}
}

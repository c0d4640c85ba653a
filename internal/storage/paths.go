package storage

import (
	"fmt"
	"path"
)

// hashSegmentLen is the directory name length used when fanning a content
// hash out into a directory tree.
const hashSegmentLen = 4

// maxImageDirDepth caps the image fan-out at seven directory levels, the
// historic layout for 32-hex dhashes.
const maxImageDirDepth = 7

// ImageObjectKey derives the bucket key for an image from its perceptual
// hash: up to seven 4-hex directory levels, then {hash}.jpg. Segments are
// sliced dynamically so both 16- and 32-hex hashes lay out correctly.
func ImageObjectKey(imageHash string) string {
	upTo := len(imageHash)
	if upTo > hashSegmentLen*maxImageDirDepth {
		upTo = hashSegmentLen * maxImageDirDepth
	}
	parts := make([]string, 0, maxImageDirDepth+1)
	for i := 0; i < upTo; i += hashSegmentLen {
		end := i + hashSegmentLen
		if end > upTo {
			end = upTo
		}
		parts = append(parts, imageHash[i:end])
	}
	parts = append(parts, imageHash+".jpg")
	return path.Join(parts...)
}

// VideoObjectKey derives the bucket key for a video from its SHA-256:
// the digest split into 4-char directory levels, omitting the final
// segment, then {hash}.mp4.
func VideoObjectKey(videoSHA256 string) string {
	var parts []string
	for i := 0; i < len(videoSHA256)-hashSegmentLen; i += hashSegmentLen {
		parts = append(parts, videoSHA256[i:i+hashSegmentLen])
	}
	parts = append(parts, videoSHA256+".mp4")
	return path.Join(parts...)
}

// ScreenshotObjectKey derives the bucket key for an archive snapshot
// screenshot.
func ScreenshotObjectKey(archiveID int64) string {
	return fmt.Sprintf("%d.png", archiveID)
}

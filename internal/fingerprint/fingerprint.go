// Package fingerprint produces the three fingerprints the pipeline and the
// clusterer share: cryptographic SHA-256 digests, a 64-bit locality-sensitive
// SimHash of ad body text, and a 64-bit perceptual dHash of decoded images.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"image"
	"math/bits"
	"strconv"
	"strings"

	// Creative images arrive as raw bytes in any of these formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
)

// shingleWidth is the token n-gram width used for SimHash features. The
// existing corpus was produced with whitespace-tokenized 4-grams; changing
// this invalidates historic hashes.
const shingleWidth = 4

// SHA256Hex returns the lowercase hex SHA-256 of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// TextSHA256Hex hashes text encoded as UTF-32 rather than UTF-8. Historic
// rows were written by Python's bytes(text, 'UTF-32'), which emits a
// little-endian BOM followed by 4-byte little-endian code points, so the
// same framing is reproduced here.
func TextSHA256Hex(text string) string {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xfe, 0x00, 0x00})
	var cp [4]byte
	for _, r := range text {
		binary.LittleEndian.PutUint32(cp[:], uint32(r))
		buf.Write(cp[:])
	}
	return SHA256Hex(buf.Bytes())
}

// SimHash computes the 64-bit locality-sensitive fingerprint of ad body
// text: lowercased whitespace tokens are shingled into 4-grams, each shingle
// is hashed with FNV-64a weighted by its occurrence count, and the weighted
// bit vector is folded by sign into the final hash.
func SimHash(text string) uint64 {
	features := shingles(text)
	if len(features) == 0 {
		return 0
	}

	var v [64]int
	for feature, weight := range features {
		h := fnv.New64a()
		h.Write([]byte(feature))
		fh := h.Sum64()
		for i := 0; i < 64; i++ {
			if fh&(1<<uint(i)) != 0 {
				v[i] += weight
			} else {
				v[i] -= weight
			}
		}
	}

	var out uint64
	for i := 0; i < 64; i++ {
		if v[i] >= 0 {
			out |= 1 << uint(i)
		}
	}
	return out
}

// shingles returns the weighted 4-gram features of text. Texts shorter than
// one full shingle contribute a single feature of all their tokens.
func shingles(text string) map[string]int {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return nil
	}

	features := make(map[string]int)
	if len(tokens) <= shingleWidth {
		features[strings.Join(tokens, " ")] = 1
		return features
	}
	for i := 0; i+shingleWidth <= len(tokens); i++ {
		features[strings.Join(tokens[i:i+shingleWidth], " ")]++
	}
	return features
}

// DecodeImage decodes raw creative image bytes into an image.Image.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// DHash computes the canonical 64-bit difference hash of img.
func DHash(img image.Image) (uint64, error) {
	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return 0, fmt.Errorf("compute dhash: %w", err)
	}
	return h.GetHash(), nil
}

// HammingDistance returns the number of differing bits between a and b.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// FormatSimHash formats a text simhash the way historic rows store it:
// lowercase hex without leading zeros or an 0x prefix.
func FormatSimHash(h uint64) string {
	return strconv.FormatUint(h, 16)
}

// FormatDHash formats an image dhash as 16 lowercase hex characters.
func FormatDHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// ParseHex64 parses a stored fingerprint back into its 64-bit value. Both
// simhash (variable width) and dhash (zero-padded) encodings are accepted.
func ParseHex64(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse fingerprint %q: %w", s, err)
	}
	return v, nil
}

package hasher

import (
	"bytes"
	"strings"
	"testing"
)

func TestFingerprintDeterministic(t *testing.T) {
	data := []byte("lecture 3: binary search trees")

	first := Fingerprint(data)
	second := Fingerprint(data)

	if first != second {
		t.Fatalf("fingerprint not deterministic: %s != %s", first, second)
	}

	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
}

func TestFingerprintDistinguishesSingleBitFlip(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 500)
	flipped := make([]byte, len(data))
	copy(flipped, data)
	flipped[250] ^= 0x01

	if Fingerprint(data) == Fingerprint(flipped) {
		t.Fatal("one-bit flip produced identical fingerprints")
	}
}

func TestFingerprintEmptyInput(t *testing.T) {
	// SHA-256 of the empty string is a well-known constant
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Fingerprint(nil); got != want {
		t.Fatalf("empty fingerprint = %s, want %s", got, want)
	}
}

func TestFingerprintReaderMatchesFingerprint(t *testing.T) {
	data := []byte("course content backend")

	got, err := FingerprintReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("FingerprintReader: %v", err)
	}

	if want := Fingerprint(data); got != want {
		t.Fatalf("reader fingerprint = %s, want %s", got, want)
	}
}

func TestPathKeyDiffersFromContentFingerprint(t *testing.T) {
	path := "/data/uploads/org-1/course-1/1700000000-slides.pdf"

	key := PathKey(path)
	if key == "" || len(key) != 64 {
		t.Fatalf("unexpected path key %q", key)
	}

	if key == Fingerprint([]byte(strings.ToUpper(path))) {
		t.Fatal("path key collided with unrelated digest")
	}

	if key != PathKey(path) {
		t.Fatal("path key not deterministic")
	}
}

package params

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeBlob(t *testing.T, dir, name string, values ...float32) {
	t.Helper()
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf, 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}
}

func writeManifest(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeBlob(t, dir, "w.bin", 1, -2, 0.5, 4, 5, 6)
	writeBlob(t, dir, "b.bin", 0.25)
	writeManifest(t, dir, `
version: 1
entries:
  - key: unit1.block1.conv.weight
    file: w.bin
    shape: [2, 1, 3]
  - key: output.bias
    file: b.bin
    shape: [1]
`)

	store, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("store holds %d arrays, want 2", store.Len())
	}

	values, ok := store.Lookup("unit1.block1.conv.weight")
	if !ok {
		t.Fatal("weight key missing")
	}
	want := []float64{1, -2, 0.5, 4, 5, 6}
	for i, v := range want {
		if values[i] != v {
			t.Fatalf("values = %v, want %v", values, want)
		}
	}

	shape := store.Shape("unit1.block1.conv.weight")
	if len(shape) != 3 || shape[0] != 2 || shape[2] != 3 {
		t.Fatalf("shape = %v, want [2 1 3]", shape)
	}
	if _, ok := store.Lookup("nope"); ok {
		t.Fatal("lookup of unknown key should report absence")
	}
}

func TestLoadShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	writeBlob(t, dir, "w.bin", 1, 2, 3)
	writeManifest(t, dir, `
entries:
  - key: w
    file: w.bin
    shape: [2, 2]
`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for shape/value count mismatch")
	}
}

func TestLoadRejectsTruncatedBlob(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "w.bin"), []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	writeManifest(t, dir, `
entries:
  - key: w
    file: w.bin
`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for blob not sized to float32s")
	}
}

func TestLoadRejectsDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	writeBlob(t, dir, "w.bin", 1)
	writeManifest(t, dir, `
entries:
  - key: w
    file: w.bin
  - key: w
    file: w.bin
`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for duplicate manifest key")
	}
}

func TestLoadMissingManifest(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

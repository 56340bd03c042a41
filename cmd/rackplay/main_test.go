package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDemoPatchValidates(t *testing.T) {
	t.Parallel()

	p, err := loadPatch("")
	if err != nil {
		t.Fatalf("loadPatch: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.Name != "demo" {
		t.Fatalf("Name = %q", p.Name)
	}
}

func TestRenderDemoToWAV(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "demo.wav")
	o := options{wav: out, seconds: 1, rate: 48000, block: 256, seed: 1, pcm16: true}
	if err := run(context.Background(), o); err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if want := 44 + 48000*2*2; len(data) != want {
		t.Fatalf("file size = %d, want %d", len(data), want)
	}
	var peak int
	for i := 44; i+1 < len(data); i += 2 {
		v := int(int16(uint16(data[i]) | uint16(data[i+1])<<8))
		peak = max(peak, v, -v)
	}
	if peak < 300 {
		t.Fatalf("demo rendered near silence (peak %d)", peak)
	}
}

func TestLoadPatchMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := loadPatch(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error")
	}
}

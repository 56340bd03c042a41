package core

import "testing"

func TestZeroAllLeavesTail(t *testing.T) {
	t.Parallel()

	chans := [][]float64{{1, 2, 3}, {4, 5, 6}}
	ZeroAll(chans, 2)
	for ch := range chans {
		if !IsSilent(chans[ch][:2]) {
			t.Fatalf("channel %d prefix = %v", ch, chans[ch][:2])
		}
	}
	if chans[0][2] != 3 || chans[1][2] != 6 {
		t.Fatalf("tail touched: %v", chans)
	}
	if IsSilent(chans[0]) {
		t.Fatal("IsSilent ignored a non-zero sample")
	}
}

func TestZero(t *testing.T) {
	t.Parallel()

	buf := []float64{1, -1, 0.5}
	Zero(buf)
	if !IsSilent(buf) {
		t.Fatalf("buf = %v", buf)
	}
	if !IsSilent(nil) {
		t.Fatal("empty buffer reported as signal")
	}
}

package gpu

import "testing"

func TestPaddedBytesPerRow(t *testing.T) {
	tests := []struct {
		width uint32
		want  uint32
	}{
		{1, 256},
		{64, 256},
		{65, 512},
		{1216, 4864},
		{100, 512},
	}
	for _, tt := range tests {
		if got := PaddedBytesPerRow(tt.width); got != tt.want {
			t.Errorf("PaddedBytesPerRow(%d) = %d, want %d", tt.width, got, tt.want)
		}
		if got := PaddedBytesPerRow(tt.width); got%CopyRowAlignment != 0 || got < tt.width*BytesPerPixel {
			t.Errorf("PaddedBytesPerRow(%d) = %d is not an aligned cover of the row", tt.width, got)
		}
	}
}

func TestReadbackSize(t *testing.T) {
	if got := ReadbackSize(1216, 768); got != 4864*768 {
		t.Errorf("ReadbackSize(1216, 768) = %d, want %d", got, 4864*768)
	}
}

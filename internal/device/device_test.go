package device

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		f    Features
		want Target
	}{
		{"amd64 avx2+fma", Features{Arch: "amd64", HasAVX2: true, HasFMA: true}, AVX2},
		{"amd64 avx2 without fma", Features{Arch: "amd64", HasAVX2: true}, Generic},
		{"arm64 neon", Features{Arch: "arm64", HasNEON: true}, NEON},
		{"wasm", Features{Arch: "wasm"}, Generic},
	}

	for _, tt := range tests {
		if got := detect(tt.f); got != tt.want {
			t.Errorf("%s: detect() = %q; want %q", tt.name, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	amd := Features{Arch: "amd64", HasAVX2: true, HasFMA: true}

	tests := []struct {
		raw     string
		want    Target
		wantErr bool
	}{
		{"", AVX2, false},
		{"auto", AVX2, false},
		{"generic", Generic, false},
		{"cpu-avx2", AVX2, false},
		{"neon", "", true},
		{"tpu", "", true},
	}

	for _, tt := range tests {
		got, err := resolve(tt.raw, amd)
		if (err != nil) != tt.wantErr {
			t.Errorf("resolve(%q) error = %v; wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}

		if got != tt.want {
			t.Errorf("resolve(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestDetectHost(t *testing.T) {
	switch got := Detect(); got {
	case Generic, AVX2, NEON:
	default:
		t.Errorf("Detect() = %q; want a known target", got)
	}
}

package testutil_test

import (
	"os"
	"strings"
	"testing"

	"github.com/example/go-nmt/internal/testutil"
)

func TestRequireCorpus_SkipsWhenUnset(t *testing.T) {
	t.Setenv(testutil.CorpusEnv, "")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireCorpus(fakeT)

	if !skipped {
		t.Error("expected RequireCorpus to skip when the variable is unset")
	}
}

func TestRequireCorpus_SkipsWhenMissing(t *testing.T) {
	t.Setenv(testutil.CorpusEnv, "/nonexistent/fra.txt")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireCorpus(fakeT)

	if !skipped {
		t.Error("expected RequireCorpus to skip when the file is absent")
	}
}

func TestRequireCorpus_ReturnsPath(t *testing.T) {
	p := testutil.WriteCorpus(t, t.TempDir(), 3)
	t.Setenv(testutil.CorpusEnv, p)

	if got := testutil.RequireCorpus(t); got != p {
		t.Errorf("RequireCorpus() = %q; want %q", got, p)
	}
}

func TestWriteCorpus(t *testing.T) {
	p := testutil.WriteCorpus(t, t.TempDir(), 10)

	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 10 {
		t.Fatalf("fixture has %d lines; want 10", len(lines))
	}

	for i, l := range lines {
		if n := len(strings.Split(l, "\t")); n != 3 {
			t.Errorf("line %d has %d fields; want 3", i+1, n)
		}
	}
}

// skipTracker is a minimal testing.TB implementation that intercepts Skip calls.
type skipTracker struct {
	testing.TB
	onSkip func()
}

func (s *skipTracker) Helper() {}

func (s *skipTracker) Skipf(_ string, _ ...any) {
	s.onSkip()
	// Do NOT call s.TB.Skip, that would actually skip the outer test.
}

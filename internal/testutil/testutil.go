// Package testutil provides shared skip helpers and fixtures for tests.
//
// Skip helpers call t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestRealCorpus(t *testing.T) {
//	    path := testutil.RequireCorpus(t)
//	    ...
//	}
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CorpusEnv names the environment variable that points at a real
// sentence-pair corpus for integration tests.
const CorpusEnv = "NMT_TEST_CORPUS"

// RequireCorpus returns the path of a real corpus file, or skips the test
// when NMT_TEST_CORPUS is unset or does not name a readable file.
func RequireCorpus(tb testing.TB) string {
	tb.Helper()

	p := os.Getenv(CorpusEnv)
	if p == "" {
		tb.Skipf("no real corpus configured; set %s to a tab-separated sentence-pair file", CorpusEnv)
		return ""
	}

	// #nosec G703 -- Integration tests intentionally accept explicit env-provided local paths.
	if _, err := os.Stat(p); err != nil {
		tb.Skipf("corpus not found at %s=%q: %v", CorpusEnv, p, err)
		return ""
	}

	return p
}

var (
	fixtureSubjects = []string{"I", "You", "We", "They"}
	fixtureVerbs    = []string{"run", "eat", "sleep", "sing", "read"}
	fixtureFrench   = map[string]string{
		"I": "Je", "You": "Tu", "We": "Nous", "They": "Ils",
		"run": "cours", "eat": "mange", "sleep": "dors", "sing": "chante", "read": "lis",
	}
)

// CorpusLines returns n deterministic English/French records in the
// three-field corpus format, attribution included.
func CorpusLines(n int) []string {
	lines := make([]string, n)

	for i := range lines {
		s := fixtureSubjects[i%len(fixtureSubjects)]
		v := fixtureVerbs[(i/len(fixtureSubjects))%len(fixtureVerbs)]

		punct := "."
		if i%3 == 0 {
			punct = "!"
		}

		lines[i] = fmt.Sprintf("%s %s%s\t%s %s%s\tCC-BY 2.0 (France) #%d",
			s, v, punct, fixtureFrench[s], fixtureFrench[v], punct, i)
	}

	return lines
}

// WriteCorpus writes CorpusLines(n) to a file in dir and returns its path.
func WriteCorpus(tb testing.TB, dir string, n int) string {
	tb.Helper()

	p := filepath.Join(dir, "pairs.tsv")
	if err := os.WriteFile(p, []byte(strings.Join(CorpusLines(n), "\n")+"\n"), 0o644); err != nil {
		tb.Fatalf("write corpus fixture: %v", err)
	}

	return p
}

package ranking

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeDomain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"EXAMPLE.COM", "example.com"},
		{"https://example.com", "example.com"},
		{"http://www.example.com/", "example.com"},
		{"  www.Example.com  ", "example.com"},
		{"example.co.uk/", "example.co.uk"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NormalizeDomain(tc.in), "input %q", tc.in)
	}
}

func TestMatchesTarget(t *testing.T) {
	t.Parallel()

	target := NormalizeDomain("example.com")

	require.True(t, MatchesTarget("https://example.com", target))
	require.True(t, MatchesTarget("https://www.example.com/pricing", target))
	require.True(t, MatchesTarget("http://EXAMPLE.com/a/b?q=1", target))
	// Host boundary: subdomain-style continuation counts as the same site.
	require.True(t, MatchesTarget("https://example.com.br", target))

	// Other domains that merely contain the target string must not match.
	require.False(t, MatchesTarget("https://notexample.com", target))
	require.False(t, MatchesTarget("https://example.company.io", NormalizeDomain("example.co")))
	require.False(t, MatchesTarget("https://other.com/example.com", target))
	require.False(t, MatchesTarget("https://other.com", target))
	require.False(t, MatchesTarget("https://example.com", ""))
}

func TestSynthesizeURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://example.com", SynthesizeURL("example.com"))
	require.Equal(t, "http://example.com", SynthesizeURL("http://example.com"))
	require.Equal(t, "https://example.com", SynthesizeURL("  example.com "))
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example.com", hostOf("https://www.example.com/path?q=1"))
	require.Equal(t, "example.com", hostOf("example.com#frag"))
	require.Equal(t, "sub.example.com", hostOf("https://sub.example.com"))
}

package identity

import (
	"math"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	aliasPattern = regexp.MustCompile(`^proj_[0-9a-z]{8}_[0-9a-z]{1,6}$`)
	tokenPattern = regexp.MustCompile(`^pauth_[0-9a-z]{8}$`)
)

func fixedAt(ms int64) Deriver {
	return Deriver{Now: func() time.Time { return time.UnixMilli(ms) }}
}

func TestHash_KnownValues(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: "00000000"},
		{name: "single char", input: "a", want: "0000002p"},
		{name: "wraps negative", input: "ProjectAowner1repoA", want: "00jn120n"},
		{name: "positive", input: "Xowner1repo", want: "00lg3lbc"},
		{name: "long seed", input: "Life-ExperimentalistActionsCounter", want: "00yq0ck0"},
		{name: "non-BMP uses UTF-16 units", input: "héllo😀", want: "004tl8kx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Hash(tt.input))
		})
	}
}

func TestEncodeHash_MinInt32(t *testing.T) {
	assert.Equal(t, "00zik0zk", encodeHash(math.MinInt32))
	assert.Equal(t, "00zik0zj", encodeHash(math.MaxInt32))
}

func TestDeriveAlias_Format(t *testing.T) {
	d := Deriver{}
	inputs := [][3]string{
		{"ProjectA", "owner1", "repoA"},
		{"", "", ""},
		{"name with spaces", "o", "r"},
		{"ünïcødé", "owner", "repo"},
	}

	for _, in := range inputs {
		alias := d.DeriveAlias(in[0], in[1], in[2])
		assert.Regexp(t, aliasPattern, string(alias), "input %q", in)
	}
}

func TestDeriveAlias_KnownValue(t *testing.T) {
	d := fixedAt(1700000000000)

	alias := d.DeriveAlias("ProjectA", "owner1", "repoA")

	assert.Equal(t, Alias("proj_00jn120n_yw3v28"), alias)
}

func TestDeriveAlias_SameMillisecondIsStable(t *testing.T) {
	d := fixedAt(1760000000000)

	first := d.DeriveAlias("ProjectA", "owner1", "repoA")
	second := d.DeriveAlias("ProjectA", "owner1", "repoA")

	assert.Equal(t, first, second)
}

func TestDeriveAlias_DifferentMillisecondChangesSuffixOnly(t *testing.T) {
	a := fixedAt(1700000000000).DeriveAlias("X", "O", "R")
	b := fixedAt(1700000000001).DeriveAlias("X", "O", "R")

	require.NotEqual(t, a, b)
	assert.Equal(t, string(a)[:len("proj_")+8], string(b)[:len("proj_")+8])
	assert.Equal(t, "yw3v28", string(a)[len("proj_")+9:])
	assert.Equal(t, "yw3v29", string(b)[len("proj_")+9:])
}

func TestDeriveAuthToken_Format(t *testing.T) {
	d := Deriver{}
	for _, name := range []string{"", "ProjectA", "a/b/c", "🙂"} {
		assert.Regexp(t, tokenPattern, string(d.DeriveAuthToken(name, "owner", "repo")))
	}
}

func TestDeriveAuthToken_KnownValue(t *testing.T) {
	token := fixedAt(1700000000000).DeriveAuthToken("ProjectA", "owner1", "repoA")

	assert.Equal(t, AuthToken("pauth_00eaq1sv"), token)
}

func TestDeriveAuthToken_ChangesBetweenMilliseconds(t *testing.T) {
	a := fixedAt(1700000000000).DeriveAuthToken("X", "owner1", "repo")
	b := fixedAt(1700000000001).DeriveAuthToken("X", "owner1", "repo")

	assert.Equal(t, AuthToken("pauth_003soeci"), a)
	assert.Equal(t, AuthToken("pauth_003soecj"), b)
}

func TestDeriver_ConcurrentUse(t *testing.T) {
	d := fixedAt(1700000000000)
	var wg sync.WaitGroup
	results := make([]Alias, 32)

	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.DeriveAlias("ProjectA", "owner1", "repoA")
		}()
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, Alias("proj_00jn120n_yw3v28"), got)
	}
}

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name     string
		alias    string
		token    string
		wantOK   bool
		wantFrag string
	}{
		{name: "well formed", alias: "proj_abc123de_001122", token: "pauth_deadbeef", wantOK: true, wantFrag: "abc123de"},
		{name: "alias without prefix", alias: "not-a-project", token: "pauth_deadbeef"},
		{name: "token without prefix", alias: "proj_abc123de_001122", token: "not-a-token"},
		{name: "both empty", alias: "", token: ""},
		{name: "other scheme version", alias: "proj2_abc", token: "pauth2_abc"},
		{name: "bare prefixes accepted", alias: "proj_", token: "pauth_", wantOK: true, wantFrag: ""},
		{name: "unrelated pair still accepted", alias: "proj_zzzzzzzz_1", token: "pauth_anything", wantOK: true, wantFrag: "zzzzzzzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := ValidateToken(tt.alias, tt.token)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantFrag, ref.Fragment)
				assert.Equal(t, "validated_project_"+tt.wantFrag, ref.String())
			} else {
				assert.Equal(t, ProjectRef{}, ref)
			}
		})
	}
}

func TestValidateToken_AcceptsDerivedPair(t *testing.T) {
	d := Deriver{}
	alias := d.DeriveAlias("demo-app", "octocat", "hello-world")
	token := d.DeriveAuthToken("demo-app", "octocat", "hello-world")

	ref, ok := ValidateToken(string(alias), string(token))

	require.True(t, ok)
	assert.Equal(t, "00rs8xxj", ref.Fragment)
}

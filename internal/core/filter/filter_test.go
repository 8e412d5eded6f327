package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbrew/feedbrew/internal/core/domain"
)

type testEntry struct {
	title   string
	content string
	link    string
}

func (e testEntry) RawTitle() string   { return e.title }
func (e testEntry) RawContent() string { return e.content }
func (e testEntry) RawLink() string    { return e.link }

func (e testEntry) PublishedAt() (time.Time, bool) { return time.Time{}, false }

func contentFilter(matchType domain.MatchType, value string) domain.Filter {
	return domain.Filter{Field: domain.FieldContent, MatchType: matchType, Value: value}
}

func feedWithGroups(op domain.Operator, groups ...domain.FilterGroup) *domain.ProcessedFeed {
	return &domain.ProcessedFeed{
		FeedGroupRelationalOperator:    op,
		SummaryGroupRelationalOperator: op,
		FilterGroups:                   groups,
	}
}

func TestMatchContains(t *testing.T) {
	entry := testEntry{title: "Go 1.24 released", content: "<p>The Go team announced</p>", link: "http://ex.com/go"}

	tests := []struct {
		name   string
		filter domain.Filter
		want   bool
	}{
		{
			name:   "title contains",
			filter: domain.Filter{Field: domain.FieldTitle, MatchType: domain.MatchContains, Value: "released"},
			want:   true,
		},
		{
			name:   "content contains",
			filter: contentFilter(domain.MatchContains, "announced"),
			want:   true,
		},
		{
			name:   "content does not contain",
			filter: contentFilter(domain.MatchDoesNotContain, "rust"),
			want:   true,
		},
		{
			name:   "link contains",
			filter: domain.Filter{Field: domain.FieldLink, MatchType: domain.MatchContains, Value: "ex.com"},
			want:   true,
		},
		{
			name:   "title_or_content spans both fields",
			filter: domain.Filter{Field: domain.FieldTitleOrContent, MatchType: domain.MatchContains, Value: "announced"},
			want:   true,
		},
		{
			name:   "missing keyword",
			filter: contentFilter(domain.MatchContains, "kubernetes"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(entry, tt.filter, false))
		})
	}
}

func TestMatchCaseSensitivity(t *testing.T) {
	entry := testEntry{content: "lorem ipsum"}
	f := contentFilter(domain.MatchContains, "Lorem")

	assert.True(t, Match(entry, f, false), "case-insensitive match should pass")
	assert.False(t, Match(entry, f, true), "case-sensitive match should fail on case mismatch")

	// Lowercasing the filter value must be equivalent in insensitive mode.
	lowered := contentFilter(domain.MatchContains, "lorem")
	assert.Equal(t, Match(entry, f, false), Match(entry, lowered, false))
}

func TestMatchEmptyContentNeverMatches(t *testing.T) {
	empty := testEntry{content: ""}

	// An absent field must not satisfy any rule, even negated ones.
	assert.False(t, Match(empty, contentFilter(domain.MatchDoesNotContain, "anything"), false))
	assert.False(t, Match(empty, contentFilter(domain.MatchNotRegex, "anything"), false))
	assert.False(t, Match(empty, contentFilter(domain.MatchShorterThan, "100"), false))

	whitespaceOnly := testEntry{content: "<p>   </p>"}
	assert.False(t, Match(whitespaceOnly, contentFilter(domain.MatchDoesNotContain, "anything"), false))
}

func TestMatchCommentContentIsolated(t *testing.T) {
	entry := testEntry{content: `<p>plain body</p><!-- secret keyword -->`}

	assert.False(t, Match(entry, contentFilter(domain.MatchContains, "secret"), false),
		"comment-embedded keyword must not cause a match")
	assert.True(t, Match(entry, contentFilter(domain.MatchContains, "plain body"), false))
}

func TestMatchRegexSearchSemantics(t *testing.T) {
	entry := testEntry{content: "release v1.24.0 is out"}

	// search, not fullmatch
	assert.True(t, Match(entry, contentFilter(domain.MatchRegex, `v\d+\.\d+`), false))
	assert.False(t, Match(entry, contentFilter(domain.MatchNotRegex, `v\d+\.\d+`), false))

	upper := testEntry{content: "RELEASE notes"}
	assert.True(t, Match(upper, contentFilter(domain.MatchRegex, "release"), false))
	assert.False(t, Match(upper, contentFilter(domain.MatchRegex, "release"), true))
}

func TestMatchLengthComparisons(t *testing.T) {
	entry := testEntry{link: "http://ex.com/a"} // 15 characters

	shorter := domain.Filter{Field: domain.FieldLink, MatchType: domain.MatchShorterThan, Value: "16"}
	longer := domain.Filter{Field: domain.FieldLink, MatchType: domain.MatchLongerThan, Value: "14"}
	exact := domain.Filter{Field: domain.FieldLink, MatchType: domain.MatchShorterThan, Value: "15"}

	assert.True(t, Match(entry, shorter, false))
	assert.True(t, Match(entry, longer, false))
	assert.False(t, Match(entry, exact, false), "comparison is strict")
}

func TestGeneratedTitleFallbackChain(t *testing.T) {
	assert.Equal(t, "real title", domain.GeneratedTitle(testEntry{title: "real title", content: "body", link: "http://x"}))
	assert.Equal(t, "body", domain.GeneratedTitle(testEntry{content: "body", link: "http://x"}))
	assert.Equal(t, "http://x", domain.GeneratedTitle(testEntry{link: "http://x"}))
	assert.Equal(t, "Untitled", domain.GeneratedTitle(testEntry{}))
}

func TestPassesNoGroupsConfigured(t *testing.T) {
	pf := feedWithGroups(domain.OperatorAll)
	entry := testEntry{content: "anything"}

	assert.True(t, Passes(entry, pf, domain.UsageFeedFilter))
	assert.True(t, Passes(entry, pf, domain.UsageSummaryFilter))
}

func TestPassesEmptyGroupIsVacuouslyTrue(t *testing.T) {
	// An empty group with operator "any" must pass, overriding any([])==false.
	pf := feedWithGroups(domain.OperatorAll, domain.FilterGroup{
		Usage:              domain.UsageFeedFilter,
		RelationalOperator: domain.OperatorAny,
	})

	assert.True(t, Passes(testEntry{content: "anything"}, pf, domain.UsageFeedFilter))
}

func TestPassesGroupOperators(t *testing.T) {
	entry := testEntry{content: "go and rust news"}

	match := contentFilter(domain.MatchContains, "go")
	miss := contentFilter(domain.MatchContains, "cobol")

	tests := []struct {
		name    string
		op      domain.Operator
		filters []domain.Filter
		want    bool
	}{
		{"all with one miss", domain.OperatorAll, []domain.Filter{match, miss}, false},
		{"all with all hits", domain.OperatorAll, []domain.Filter{match, match}, true},
		{"any with one hit", domain.OperatorAny, []domain.Filter{miss, match}, true},
		{"any with no hits", domain.OperatorAny, []domain.Filter{miss, miss}, false},
		{"none with no hits", domain.OperatorNone, []domain.Filter{miss, miss}, true},
		{"none with one hit", domain.OperatorNone, []domain.Filter{miss, match}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pf := feedWithGroups(domain.OperatorAll, domain.FilterGroup{
				Usage:              domain.UsageFeedFilter,
				RelationalOperator: tt.op,
				Filters:            tt.filters,
			})

			assert.Equal(t, tt.want, Passes(entry, pf, domain.UsageFeedFilter))
		})
	}
}

func TestPassesCrossGroupOperator(t *testing.T) {
	entry := testEntry{content: "go news"}

	hitGroup := domain.FilterGroup{
		Usage:              domain.UsageFeedFilter,
		RelationalOperator: domain.OperatorAny,
		Filters:            []domain.Filter{contentFilter(domain.MatchContains, "go")},
	}
	missGroup := domain.FilterGroup{
		Usage:              domain.UsageFeedFilter,
		RelationalOperator: domain.OperatorAny,
		Filters:            []domain.Filter{contentFilter(domain.MatchContains, "cobol")},
	}

	assert.False(t, Passes(entry, feedWithGroups(domain.OperatorAll, hitGroup, missGroup), domain.UsageFeedFilter))
	assert.True(t, Passes(entry, feedWithGroups(domain.OperatorAny, hitGroup, missGroup), domain.UsageFeedFilter))
	assert.False(t, Passes(entry, feedWithGroups(domain.OperatorNone, hitGroup, missGroup), domain.UsageFeedFilter))
}

func TestPassesUsageSelectsGroupsAndOperator(t *testing.T) {
	entry := testEntry{content: "go news"}

	pf := &domain.ProcessedFeed{
		FeedGroupRelationalOperator:    domain.OperatorAny,
		SummaryGroupRelationalOperator: domain.OperatorNone,
		FilterGroups: []domain.FilterGroup{
			{
				Usage:              domain.UsageFeedFilter,
				RelationalOperator: domain.OperatorAny,
				Filters:            []domain.Filter{contentFilter(domain.MatchContains, "go")},
			},
			{
				Usage:              domain.UsageSummaryFilter,
				RelationalOperator: domain.OperatorAny,
				Filters:            []domain.Filter{contentFilter(domain.MatchContains, "go")},
			},
		},
	}

	assert.True(t, Passes(entry, pf, domain.UsageFeedFilter))
	assert.False(t, Passes(entry, pf, domain.UsageSummaryFilter), "none operator negates the summary group hit")
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(domain.Filter{MatchType: domain.MatchContains, Value: "anything"}))
	require.NoError(t, Validate(domain.Filter{MatchType: domain.MatchShorterThan, Value: "10"}))
	require.NoError(t, Validate(domain.Filter{MatchType: domain.MatchRegex, Value: `v\d+`}))

	assert.Error(t, Validate(domain.Filter{MatchType: domain.MatchShorterThan, Value: "ten"}))
	assert.Error(t, Validate(domain.Filter{MatchType: domain.MatchLongerThan, Value: "0"}))
	assert.Error(t, Validate(domain.Filter{MatchType: domain.MatchLongerThan, Value: "-3"}))
	assert.Error(t, Validate(domain.Filter{MatchType: domain.MatchRegex, Value: "("}))
}

// Package domain defines the core entities of the feed aggregation pipeline.
//
// A ProcessedFeed combines several SourceFeeds (directly or via tags), filters
// their entries through FilterGroups, and republishes the surviving Articles,
// optionally enriched with AI summaries and periodic Digests.
package domain

import "time"

// MatchField selects the entry field a filter rule inspects.
type MatchField string

const (
	FieldTitle          MatchField = "title"
	FieldContent        MatchField = "content"
	FieldLink           MatchField = "link"
	FieldTitleOrContent MatchField = "title_or_content"
)

// MatchType is the comparison a filter rule applies.
type MatchType string

const (
	MatchContains       MatchType = "contains"
	MatchDoesNotContain MatchType = "does_not_contain"
	MatchRegex          MatchType = "matches_regex"
	MatchNotRegex       MatchType = "does_not_match_regex"
	MatchShorterThan    MatchType = "shorter_than"
	MatchLongerThan     MatchType = "longer_than"
)

// Operator combines boolean results within a group or across groups.
type Operator string

const (
	OperatorAll  Operator = "all"
	OperatorAny  Operator = "any"
	OperatorNone Operator = "none"
)

// FilterUsage distinguishes inclusion filtering from summary eligibility.
type FilterUsage string

const (
	UsageFeedFilter    FilterUsage = "feed_filter"
	UsageSummaryFilter FilterUsage = "summary_filter"
)

// DigestFrequency is how often a ProcessedFeed composes a digest.
type DigestFrequency string

const (
	DigestDaily  DigestFrequency = "daily"
	DigestWeekly DigestFrequency = "weekly"
)

// DefaultMaxArticlesToKeep is the per-source retention cap applied when a
// source feed does not set its own.
const DefaultMaxArticlesToKeep = 1000

// Tag labels SourceFeeds so ProcessedFeeds can subscribe to whole groups.
type Tag struct {
	ID   int64
	Name string
}

// SourceFeed is one external RSS/Atom feed being ingested.
type SourceFeed struct {
	ID                int64
	URL               string
	Title             string
	MaxArticlesToKeep int
	Valid             bool
	Tags              []Tag
}

// Filter is a single match rule inside a FilterGroup.
type Filter struct {
	ID        int64
	GroupID   int64
	Field     MatchField
	MatchType MatchType
	Value     string
}

// FilterGroup is an ordered set of Filters sharing one relational operator.
type FilterGroup struct {
	ID                 int64
	ProcessedFeedID    int64
	Usage              FilterUsage
	RelationalOperator Operator
	Filters            []Filter
}

// ProcessedFeed is a user-defined aggregation target.
type ProcessedFeed struct {
	ID   int64
	Name string

	Feeds  []SourceFeed
	TagIDs []int64

	// Summarization settings.
	ArticlesToSummarizePerInterval int
	SummaryLanguage                string
	Model                          string
	AdditionalPrompt               string
	CaseSensitive                  bool
	TranslateTitle                 bool

	// Cross-group operators, one per filter usage.
	FeedGroupRelationalOperator    Operator
	SummaryGroupRelationalOperator Operator
	FilterGroups                   []FilterGroup

	// Digest settings.
	ToggleEntries             bool
	ToggleDigest              bool
	DigestFrequency           DigestFrequency
	DigestModel               string
	UseAIDigest               bool
	AdditionalPromptForDigest string
	IncludeOneLineSummary     bool
	IncludeSummary            bool
	IncludeContent            bool
	SendFullArticle           bool

	// Incremental-work watermarks.
	LastModified *time.Time
	LastDigest   *time.Time
}

// GroupsFor returns the filter groups configured for the given usage.
func (pf *ProcessedFeed) GroupsFor(usage FilterUsage) []FilterGroup {
	var groups []FilterGroup

	for _, g := range pf.FilterGroups {
		if g.Usage == usage {
			groups = append(groups, g)
		}
	}

	return groups
}

// CrossGroupOperator returns the operator combining group results for a usage.
func (pf *ProcessedFeed) CrossGroupOperator(usage FilterUsage) Operator {
	if usage == UsageSummaryFilter {
		return pf.SummaryGroupRelationalOperator
	}

	return pf.FeedGroupRelationalOperator
}

// MembershipChange reports the outcome of UpdateMembership.
type MembershipChange struct {
	Changed           bool
	WatermarksCleared bool
}

// UpdateMembership replaces the feed/tag membership sets and resets both
// watermarks when the sets actually differ, forcing a full re-scan.
// A no-op write leaves the watermarks untouched.
func (pf *ProcessedFeed) UpdateMembership(feeds []SourceFeed, tagIDs []int64) MembershipChange {
	if sameFeedSet(pf.Feeds, feeds) && sameIDSet(pf.TagIDs, tagIDs) {
		return MembershipChange{}
	}

	pf.Feeds = feeds
	pf.TagIDs = tagIDs
	pf.LastModified = nil
	pf.LastDigest = nil

	return MembershipChange{Changed: true, WatermarksCleared: true}
}

func sameFeedSet(a, b []SourceFeed) bool {
	if len(a) != len(b) {
		return false
	}

	seen := make(map[int64]struct{}, len(a))
	for _, f := range a {
		seen[f.ID] = struct{}{}
	}

	for _, f := range b {
		if _, ok := seen[f.ID]; !ok {
			return false
		}
	}

	return true
}

func sameIDSet(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}

	seen := make(map[int64]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}

	for _, id := range b {
		if _, ok := seen[id]; !ok {
			return false
		}
	}

	return true
}

// Article is a persisted entry belonging to one SourceFeed.
type Article struct {
	ID             int64
	SourceFeedID   int64
	Title          string
	Link           string
	PublishedDate  time.Time
	Content        string
	Summary        string
	SummaryOneLine string
	Summarized     bool
	CustomPrompt   bool
	CreatedAt      time.Time
}

// Digest is an immutable rendered snapshot of a window of Articles.
type Digest struct {
	ID              int64
	ProcessedFeedID int64
	Content         string
	StartTime       time.Time
	CreatedAt       time.Time
}

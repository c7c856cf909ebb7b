package jobs

import "slices"

// FeedSource is one RSS or Atom feed a refresh pulls from.
type FeedSource struct {
	Name string
	Url  string
}

// topicSources maps interest topics to curated feeds. The registry is
// static; per-user source management is a separate feature.
var topicSources = map[string][]FeedSource{
	"programming": {
		{Name: "Hacker News", Url: "https://news.ycombinator.com/rss"},
		{Name: "Lobsters", Url: "https://lobste.rs/rss"},
		{Name: "The Go Blog", Url: "https://go.dev/blog/feed.atom"},
	},
	"technology": {
		{Name: "Ars Technica", Url: "https://feeds.arstechnica.com/arstechnica/index"},
		{Name: "The Verge", Url: "https://www.theverge.com/rss/index.xml"},
	},
	"science": {
		{Name: "Quanta Magazine", Url: "https://www.quantamagazine.org/feed/"},
		{Name: "Nature News", Url: "https://www.nature.com/nature.rss"},
	},
	"design": {
		{Name: "Smashing Magazine", Url: "https://www.smashingmagazine.com/feed/"},
	},
	"business": {
		{Name: "Stratechery", Url: "https://stratechery.com/feed/"},
	},
}

// topicKeywords maps interest topics to Hacker News search keywords,
// pulling in discussion-driven stories the curated feeds miss.
var topicKeywords = map[string][]string{
	"programming": {"programming", "golang"},
	"technology":  {"technology"},
	"science":     {"science"},
	"design":      {"design"},
	"business":    {"startup"},
}

// resolveSources returns the feeds for the requested topics, or every
// registered feed when no topics are given. The order is stable across
// runs so progress snapshots for the same parameters line up.
func resolveSources(topics []string) []FeedSource {
	if len(topics) == 0 {
		registered := make([]string, 0, len(topicSources))
		for topic := range topicSources {
			registered = append(registered, topic)
		}
		slices.Sort(registered)

		var all []FeedSource
		for _, topic := range registered {
			all = append(all, topicSources[topic]...)
		}
		return all
	}
	var selected []FeedSource
	for _, topic := range topics {
		selected = append(selected, topicSources[topic]...)
	}
	return selected
}

// resolveKeywords mirrors resolveSources for the Hacker News keyword list,
// with the same stable ordering.
func resolveKeywords(topics []string) []string {
	if len(topics) == 0 {
		registered := make([]string, 0, len(topicKeywords))
		for topic := range topicKeywords {
			registered = append(registered, topic)
		}
		slices.Sort(registered)

		var all []string
		for _, topic := range registered {
			all = append(all, topicKeywords[topic]...)
		}
		return all
	}
	var selected []string
	for _, topic := range topics {
		selected = append(selected, topicKeywords[topic]...)
	}
	return selected
}

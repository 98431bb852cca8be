package evaluator

import (
	"strings"

	"github.com/spigell/interview-conductor/internal/interview"
)

// dimensionKeywords reward vocabulary typical of a strong answer on each
// dimension. Relevance is judged against topic terms instead.
var dimensionKeywords = map[interview.Dimension][]string{
	interview.DimensionTechnical:      {"algorithm", "architecture", "optimization", "design pattern", "scalability"},
	interview.DimensionCommunication:  {"explain", "clarify", "understand", "communicate", "present"},
	interview.DimensionProblemSolving: {"approach", "solution", "alternative", "trade-off", "consider"},
	interview.DimensionDepth:          {"because", "therefore", "however", "consider", "impact"},
	interview.DimensionClarity:        {"first", "second", "then", "finally", "specifically"},
}

// categoryTerms is the terminology every topic of a category shares on top of
// its own skill terms.
var categoryTerms = map[interview.Category][]string{
	interview.CategoryTechnical: {
		"algorithm", "architecture", "optimization", "performance", "latency", "concurrency",
		"database", "api", "cache", "testing", "deployment", "debugging", "memory", "thread",
	},
	interview.CategoryBehavioral: {
		"team", "stakeholder", "conflict", "feedback", "ownership", "deadline", "mentor",
		"collaborate", "communication", "outcome", "learned",
	},
	interview.CategorySituational: {
		"prioritize", "trade-off", "risk", "escalate", "incident", "impact", "mitigate",
		"timeline", "decision", "rollback",
	},
	interview.CategorySystemDesign: {
		"scalability", "throughput", "partition", "replication", "consistency", "availability",
		"load balancer", "queue", "sharding", "cache", "latency", "failover",
	},
}

var hedgePhrases = []string{
	"i think", "probably", "maybe", "not sure", "i believe", "i guess",
	"i don't know", "not familiar", "haven't used", "kind of", "sort of",
}

// topicTerms returns the terminology associated with the topic.
func topicTerms(topic interview.Topic, job *interview.JobProfile) []string {
	var terms []string
	if job != nil {
		terms = append(terms, job.TermsFor(topic.Skill)...)
	} else {
		terms = append(terms, strings.Fields(strings.ToLower(string(topic.Skill)))...)
	}
	terms = append(terms, categoryTerms[topic.Category]...)

	seen := make(map[string]struct{}, len(terms))
	unique := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}
	return unique
}

// countTerms counts occurrences of terms in the token stream. Single-word
// terms match whole tokens or, from four letters on, token prefixes, so
// "team" also matches "teams". Multi-word terms match as phrases.
func countTerms(tokens []string, terms []string) int {
	joined := " " + strings.Join(tokens, " ") + " "
	hits := 0
	for _, term := range terms {
		if strings.Contains(term, " ") {
			hits += strings.Count(joined, " "+term+" ")
			continue
		}
		for _, tok := range tokens {
			if tok == term || (len(term) >= 4 && strings.HasPrefix(tok, term)) {
				hits++
			}
		}
	}
	return hits
}

// presentTerms counts how many distinct terms occur at least once.
func presentTerms(tokens []string, terms []string) int {
	n := 0
	for _, term := range terms {
		if countTerms(tokens, []string{term}) > 0 {
			n++
		}
	}
	return n
}

// countHedges counts hedging and uncertainty phrases in text.
func countHedges(text string) int {
	lower := strings.ToLower(text)
	lower = strings.ReplaceAll(lower, "’", "'")
	n := 0
	for _, p := range hedgePhrases {
		n += strings.Count(lower, p)
	}
	return n
}

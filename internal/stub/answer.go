package stub

import (
	"sort"
	"strings"
	"unicode"
)

const maxSources = 3

type Answer struct {
	Response    string
	SourcesUsed int
	Confidence  string
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"what": true, "who": true, "how": true, "why": true, "when": true,
	"does": true, "did": true, "this": true, "that": true, "with": true,
	"about": true, "from": true, "document": true, "tell": true,
}

type passage struct {
	index int
	text  string
	score int
}

// answerFrom picks the sentences sharing the most keywords with the
// question. Confidence is the share of question keywords the best sentence
// covers: high from 0.6, medium from 0.3.
func answerFrom(content, question string) Answer {
	if strings.TrimSpace(content) == "" {
		return Answer{
			Response:   "I could not find any readable text in this document.",
			Confidence: "low",
		}
	}

	terms := keywords(question)
	if len(terms) == 0 {
		return Answer{
			Response:   "Please ask a more specific question about the document.",
			Confidence: "low",
		}
	}

	var scored []passage
	for i, sentence := range sentences(content) {
		lower := strings.ToLower(sentence)
		score := 0
		for term := range terms {
			if strings.Contains(lower, term) {
				score++
			}
		}
		if score > 0 {
			scored = append(scored, passage{index: i, text: sentence, score: score})
		}
	}

	if len(scored) == 0 {
		return Answer{
			Response:   "I couldn't find anything in this document related to your question.",
			Confidence: "low",
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > maxSources {
		scored = scored[:maxSources]
	}
	best := scored[0].score
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].index < scored[j].index })

	parts := make([]string, len(scored))
	for i, p := range scored {
		parts[i] = p.text
	}

	confidence := "low"
	switch ratio := float64(best) / float64(len(terms)); {
	case ratio >= 0.6:
		confidence = "high"
	case ratio >= 0.3:
		confidence = "medium"
	}

	return Answer{
		Response:    "Based on the document: " + strings.Join(parts, " "),
		SourcesUsed: len(parts),
		Confidence:  confidence,
	}
}

func keywords(question string) map[string]bool {
	terms := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) < 3 || stopwords[w] {
			continue
		}
		terms[w] = true
	}
	return terms
}

func sentences(content string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for _, r := range content {
		switch r {
		case '\n':
			flush()
		case '.', '!', '?':
			cur.WriteRune(r)
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

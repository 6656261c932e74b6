package profanity

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultWords is a small English list used when no list is configured.
// Matching is exact per token, so inflections are listed explicitly.
var DefaultWords = []string{
	"arse", "asshole", "assholes", "bastard", "bastards", "bitch", "bitches",
	"bollocks", "bullshit", "crap", "cunt", "cunts", "damn", "dickhead",
	"dickheads", "fag", "fags", "fuck", "fucked", "fucker", "fuckers",
	"fucking", "fucks", "motherfucker", "motherfuckers", "pissed", "pussy",
	"shit", "shits", "shitty", "slut", "sluts", "twat", "twats", "wanker",
	"wankers", "whore", "whores",
}

var nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)

// Tokenize splits text into lower-case tokens with diacritics removed
func Tokenize(text string) []string {
	// transformers are stateful, so build a fresh chain per call
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	bare := strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	normalized, _, err := transform.String(normFunc, bare)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		normalized = bare
	}
	return strings.Fields(normalized)
}

// WordlistClassifier flags text containing any listed word. It needs no
// network and never fails.
type WordlistClassifier struct {
	words map[string]struct{}
}

var _ verdictSource = (*WordlistClassifier)(nil)

// NewWordlistClassifier builds a classifier from words, or DefaultWords when empty
func NewWordlistClassifier(words []string) *WordlistClassifier {
	if len(words) == 0 {
		words = DefaultWords
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		for _, tok := range Tokenize(w) {
			set[tok] = struct{}{}
		}
	}
	return &WordlistClassifier{words: set}
}

func (c *WordlistClassifier) Classify(ctx context.Context, text string) bool {
	profane, _ := c.verdict(ctx, text)
	return profane
}

func (c *WordlistClassifier) verdict(_ context.Context, text string) (bool, bool) {
	profane := false
	for _, tok := range Tokenize(text) {
		if _, ok := c.words[tok]; ok {
			profane = true
			break
		}
	}
	classifyCount.WithLabelValues("wordlist", strconv.FormatBool(profane)).Inc()
	return profane, true
}

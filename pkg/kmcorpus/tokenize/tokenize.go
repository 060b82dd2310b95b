// Package tokenize turns raw abstract/title text and user-supplied search
// terms into the normalized unigram/bigram vocabulary the rest of
// kmcorpus indexes and queries against.
package tokenize

import (
	"strings"
	"unicode"
)

// booleanOperators are the characters a search term may carry as query
// syntax; SanitizeTerm and GetSubterms use them to split a composite
// term from the plain words the index stores.
const booleanOperators = "&|()"

// tokenize is the shared implementation behind Tokenize and the
// operator-preserving helpers: lowercase, replace underscore with a
// space (underscore is a "word" rune by the \w+ reading but never one
// corpus tokens carry), then emit maximal runs of letters/digits. When
// keepOps is true each boolean operator rune is also emitted as its own
// single-rune token, interleaved with the word runs around it.
func tokenize(text string, keepOps bool) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.ReplaceAll(text, "_", " ")

	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		case keepOps && strings.ContainsRune(booleanOperators, r):
			flush()
			tokens = append(tokens, string(r))
		default:
			flush()
		}
	}
	flush()

	return tokens
}

// Tokenize splits text into lowercase word tokens. A token is a maximal
// run of letters or digits; underscore acts as a boundary rather than a
// word character, matching how the abstract corpus was originally
// indexed (the source text has `_` replaced with a space before
// tokenization, so "My_Search" yields ["my", "search"], not one token).
func Tokenize(text string) []string {
	return tokenize(text, false)
}

func isOperatorToken(tok string) bool {
	return len(tok) == 1 && strings.ContainsRune(booleanOperators, rune(tok[0]))
}

// Ngrams builds width-n grams (space-joined) from a token slice. Width 1
// returns the tokens unchanged; width 2 returns adjacent-pair bigrams.
func Ngrams(tokens []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		out := make([]string, len(tokens))
		copy(out, tokens)
		return out
	}
	if len(tokens) < n {
		return nil
	}

	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], " "))
	}
	return out
}

// SanitizeTerm normalizes a raw search term the way Tokenize normalizes
// corpus text, but keeps boolean operator characters (&, |, (, )) in
// the result rather than discarding them: words are separated by a
// single space, while an operator is glued directly to its neighbors
// with no surrounding space. "My_Search & Term" sanitizes to
// "my search&term". This lets a caller test the sanitized string for
// operator presence before deciding how to split it.
func SanitizeTerm(term string) string {
	tokens := tokenize(term, true)

	var out strings.Builder
	for i, tok := range tokens {
		if i > 0 && !isOperatorToken(tok) && !isOperatorToken(tokens[i-1]) {
			out.WriteByte(' ')
		}
		out.WriteString(tok)
	}
	return out.String()
}

// GetSubterms splits a composite term into the subterms separated by
// `&`/`|` operators. Words between operators are kept together as one
// subterm (so a multi-word phrase survives as a single entry); a term
// with no operators returns that whole term as its only subterm. Empty
// subterms produced by adjacent operators are dropped.
func GetSubterms(term string) []string {
	tokens := tokenize(term, true)

	var subterms []string
	var cur []string
	flush := func() {
		if s := strings.TrimSpace(strings.Join(cur, " ")); s != "" {
			subterms = append(subterms, s)
		}
		cur = nil
	}

	for _, tok := range tokens {
		if isOperatorToken(tok) {
			flush()
			continue
		}
		cur = append(cur, tok)
	}
	flush()

	return subterms
}

// IsPhrase reports whether a single (operator-free) term tokenizes to
// more than one word, which changes how the query engine resolves it
// (bigram-accelerated intersection plus positional verification,
// instead of a single map lookup).
func IsPhrase(term string) bool {
	return len(Tokenize(term)) > 1
}

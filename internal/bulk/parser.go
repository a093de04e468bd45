// Package bulk turns loosely structured plain text pasted by an author into
// validated multiple-choice questions.
package bulk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/dummy7679/testcraft/internal/quiz"
)

// Diagnostic describes why a candidate block produced no question. Blocks are
// still dropped whole; diagnostics only report, they never emit partial
// questions.
type Diagnostic struct {
	Block  int    `json:"block"` // 1-based ordinal of the block in the source
	Line   int    `json:"line"`  // 1-based source line where the block starts
	Reason string `json:"reason"`
}

const requiredOptions = 4

type lineKind int

const (
	lineQuestion lineKind = iota
	lineOption
	lineAnswer
	lineBlank
	lineText
)

// Line grammar, evaluated in order; first match wins. Kept as a table so new
// line kinds and diagnostics can be added without touching Parse call sites.
var lineGrammar = []struct {
	kind lineKind
	re   *regexp.Regexp
}{
	{lineQuestion, regexp.MustCompile(`^Q\d+\.\s*(.*)$`)},
	{lineOption, regexp.MustCompile(`^([A-D])\.\s+(.*)$`)},
	{lineAnswer, regexp.MustCompile(`^Answer:\s+([A-D])`)},
}

// Tag bodies are the shortest non-']' run; nested brackets are unsupported.
var (
	reImageTag = regexp.MustCompile(`\[image:\s*([^\]]+)\]`)
	reLatexTag = regexp.MustCompile(`\[latex:\s*([^\]]+)\]`)
)

type token struct {
	kind lineKind
	args []string // submatches, per grammar row
	line int      // 1-based source line
}

func classify(raw string, lineNo int) token {
	s := strings.TrimSpace(raw)
	if s == "" {
		return token{kind: lineBlank, line: lineNo}
	}
	for _, g := range lineGrammar {
		if m := g.re.FindStringSubmatch(s); m != nil {
			return token{kind: g.kind, args: m[1:], line: lineNo}
		}
	}
	return token{kind: lineText, args: []string{s}, line: lineNo}
}

// Parse converts bulk text into questions. Pure and deterministic apart from
// freshly minted ids. The images map (name -> bytes, last upload wins) only
// decides whether an [image: key] tag resolves; an unknown key yields a
// question without an image reference, not an error.
func Parse(text string, images map[string][]byte) ([]quiz.Question, []Diagnostic) {
	var (
		questions []quiz.Question
		diags     []Diagnostic
	)

	tokens := make([]token, 0, 64)
	for i, raw := range strings.Split(text, "\n") {
		tokens = append(tokens, classify(raw, i+1))
	}

	block := 0
	for i := 0; i < len(tokens); i++ {
		if tokens[i].kind != lineQuestion {
			// Preamble before the first marker and stray text between blocks.
			continue
		}
		end := i + 1
		for end < len(tokens) && tokens[end].kind != lineQuestion {
			end++
		}
		block++
		q, diag := evalBlock(block, tokens[i:end], images)
		if diag != nil {
			diags = append(diags, *diag)
		} else {
			questions = append(questions, q)
		}
		i = end - 1
	}
	return questions, diags
}

// evalBlock applies the acceptance rule: exactly 4 options and an answer
// letter that maps to one of them, or the whole block is dropped.
func evalBlock(ordinal int, toks []token, images map[string][]byte) (quiz.Question, *Diagnostic) {
	reject := func(reason string) (quiz.Question, *Diagnostic) {
		return quiz.Question{}, &Diagnostic{Block: ordinal, Line: toks[0].line, Reason: reason}
	}

	prompt := strings.TrimSpace(toks[0].args[0])
	if prompt == "" {
		return reject("question marker has no prompt text")
	}
	prompt, imageKey := extractTag(prompt, reImageTag)
	prompt, latex := extractTag(prompt, reLatexTag)

	var options []quiz.Option
	answerIdx := -1
	for _, t := range toks[1:] {
		switch t.kind {
		case lineOption:
			text, optLatex := extractTag(strings.TrimSpace(t.args[1]), reLatexTag)
			options = append(options, quiz.Option{
				ID:    uuid.NewString(),
				Text:  text,
				Latex: optLatex,
			})
		case lineAnswer:
			answerIdx = int(t.args[0][0] - 'A')
		}
	}

	if len(options) != requiredOptions {
		return reject(fmt.Sprintf("expected %d options, found %d", requiredOptions, len(options)))
	}
	if answerIdx < 0 {
		return reject("missing or invalid Answer line")
	}
	if answerIdx >= len(options) {
		return reject(fmt.Sprintf("answer letter %c has no matching option", 'A'+answerIdx))
	}

	q := quiz.Question{
		ID:                 uuid.NewString(),
		Type:               quiz.MultipleChoice,
		Text:               prompt,
		Latex:              latex,
		Options:            options,
		CorrectOptionIndex: answerIdx,
	}
	if imageKey != "" {
		if _, ok := images[imageKey]; ok {
			q.ImageRef = imageKey
		}
	}
	return q, nil
}

// ImageKeys lists every image name referenced by the text, in order and
// deduplicated, so callers can preload bytes from wherever uploads live.
func ImageKeys(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, line := range strings.Split(text, "\n") {
		m := reImageTag.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.TrimSpace(m[1])
		if key != "" && !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

// extractTag pulls the first occurrence of a tag out of s, returning the text
// with the tag stripped and the trimmed tag body. Later occurrences are left
// in the text untouched.
func extractTag(s string, re *regexp.Regexp) (rest, body string) {
	m := re.FindStringSubmatchIndex(s)
	if m == nil {
		return s, ""
	}
	body = strings.TrimSpace(s[m[2]:m[3]])
	rest = strings.TrimSpace(s[:m[0]] + s[m[1]:])
	return rest, body
}

package pipeline

import (
	"regexp"
	"strings"
)

// EmptySignal is the token the summarization prompt tells the model to answer
// with when a batch holds nothing worth keeping. It is part of the prompt contract.
const EmptySignal = "NEIN_LEER"

// FormattingInstructions are appended to every summarization prompt.
const FormattingInstructions = `You output markdown with new permanent operational parameters:
- Do not use top-level headings (#). Start at ## or lower.
- Enclose inline LaTeX formulas in single dollar signs ($...$) and block formulas in double dollar signs ($$...$$). Never use \( \) or \[ \].
- If the given pages contain nothing relevant for the task, output only ` + EmptySignal + `.`

// TitleInstruction asks for a document title derived from the summarization task.
const TitleInstruction = "Generate a short, suitable title for a Markdown document produced by the following instructions. " +
	"Answer with the title only, without quotes and without markdown formatting."

var (
	inlineMath = regexp.MustCompile(`\\\((.*?)\\\)`)
	blockMath  = regexp.MustCompile(`(?s)\\\[(.*?)\\\]`)
)

// NormalizeMath rewrites \( x \) to $x$ and \[ x \] to $$x$$.
// Text already using dollar delimiters is left unchanged.
func NormalizeMath(s string) string {
	s = inlineMath.ReplaceAllStringFunc(s, func(m string) string {
		inner := inlineMath.FindStringSubmatch(m)[1]
		return "$" + strings.TrimSpace(inner) + "$"
	})
	return blockMath.ReplaceAllStringFunc(s, func(m string) string {
		inner := blockMath.FindStringSubmatch(m)[1]
		return "$$" + strings.TrimSpace(inner) + "$$"
	})
}

// StripMarkdownFence removes a surrounding ```markdown fence, if present.
func StripMarkdownFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```markdown") {
		return s
	}
	trimmed = strings.TrimPrefix(trimmed, "```markdown")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// IsEmptySignal reports whether a reply is the empty-content sentinel.
func IsEmptySignal(s string) bool {
	return strings.TrimSpace(s) == EmptySignal
}

// CleanTitle reduces a model answer to a single heading-free line.
func CleanTitle(s string) string {
	s = StripMarkdownFence(s)
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimLeft(s, "# ")
	s = strings.Trim(s, "\"'*` ")
	return strings.TrimSpace(s)
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// LooksLikeRefusal reports whether a reply reads like a model refusal.
func LooksLikeRefusal(s string) bool {
	lower := strings.ToLower(s)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

package extract

import "strings"

// repairStage is one text transform in the recovery pipeline. Stages run in
// declaration order; each is independently testable.
type repairStage struct {
	name  string
	apply func(string) string
}

var repairStages = []repairStage{
	{name: "strip-comments", apply: stripLineComments},
	{name: "strip-control-chars", apply: stripControlChars},
	{name: "collapse-whitespace", apply: collapseWhitespace},
	{name: "tighten-brackets", apply: tightenBrackets},
}

// stripLineComments removes // comments to end of line. Double slashes inside
// quoted strings (URLs) are preserved.
func stripLineComments(input string) string {
	lines := strings.Split(input, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripCommentFromLine(line))
	}
	return strings.Join(cleaned, "\n")
}

func stripCommentFromLine(line string) string {
	inString := false
	escaped := false
	for index := 0; index < len(line); index++ {
		char := line[index]
		if escaped {
			escaped = false
			continue
		}
		switch char {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '/':
			if !inString && index+1 < len(line) && line[index+1] == '/' {
				return strings.TrimRight(line[:index], " \t")
			}
		}
	}
	return line
}

// stripControlChars drops C0/C1 control characters except newline, which the
// comment stage needs and the whitespace stage normalizes away.
func stripControlChars(input string) string {
	var builder strings.Builder
	builder.Grow(len(input))
	for _, char := range input {
		if char == '\n' {
			builder.WriteRune(char)
			continue
		}
		if char < 0x20 || char == 0x7f || (char >= 0x80 && char <= 0x9f) {
			continue
		}
		builder.WriteRune(char)
	}
	return builder.String()
}

func collapseWhitespace(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

func tightenBrackets(input string) string {
	replacer := strings.NewReplacer("{ ", "{", " }", "}", "[ ", "[", " ]", "]")
	return replacer.Replace(input)
}

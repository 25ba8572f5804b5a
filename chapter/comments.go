package chapter

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// comment locates one comment inside a code listing. start/end cover the
// whole comment including delimiters; textStart/textEnd cover the words to
// translate, without delimiters and surrounding whitespace.
type comment struct {
	start, end         int
	textStart, textEnd int
	block              bool
}

// syntax describes the comment and string rules of a language family.
type syntax struct {
	line       []string    // line comment markers, longest first
	block      [][2]string // block comment open/close pairs
	quotes     string      // string delimiters
	rawQuote   byte        // delimiter of multi-line raw strings, 0 if none
	tripleQuot bool        // python-style """ and ''' strings
	wordStart  bool        // line markers count only at line start or after whitespace
	charLit    bool        // ' delimits single-character literals only
}

var (
	cFamily = syntax{
		line:     []string{"//"},
		block:    [][2]string{{"/*", "*/"}},
		quotes:   `"'`,
		rawQuote: '`',
		charLit:  true,
	}
	// jsFamily strings may be single-quoted, so ' opens a full string.
	jsFamily = syntax{
		line:     []string{"//"},
		block:    [][2]string{{"/*", "*/"}},
		quotes:   `"'`,
		rawQuote: '`',
	}
	pythonFamily = syntax{
		line:       []string{"#"},
		quotes:     `"'`,
		tripleQuot: true,
	}
	shellFamily = syntax{
		line:      []string{"#"},
		quotes:    `"'`,
		wordStart: true,
	}
	sqlFamily = syntax{
		line:   []string{"--"},
		block:  [][2]string{{"/*", "*/"}},
		quotes: `"'`,
	}
)

// syntaxFor picks the comment syntax from a code example's language field.
// Unknown or missing languages use C-family rules.
func syntaxFor(lang string) syntax {
	switch lang {
	case "javascript", "js", "jsx", "mjs", "typescript", "ts", "tsx",
		"php", "dart", "json5":
		return jsFamily
	case "python", "py", "python3", "ipython":
		return pythonFamily
	case "bash", "sh", "shell", "zsh", "console", "yaml", "yml", "toml",
		"ruby", "rb", "perl", "r", "dockerfile", "makefile", "make", "cmake",
		"conf", "ini", "powershell", "ps1":
		return shellFamily
	case "sql", "lua", "haskell", "hs":
		return sqlFamily
	default:
		return cFamily
	}
}

// findComments scans code and returns its comments in order. String and
// character literals are skipped so comment markers inside them are ignored.
func findComments(code string, sx syntax) []comment {
	var out []comment
	i := 0
	for i < len(code) {
		c := code[i]

		// Strings.
		if sx.tripleQuot && (strings.HasPrefix(code[i:], `"""`) || strings.HasPrefix(code[i:], `'''`)) {
			i = skipDelimited(code, i+3, code[i:i+3], false)
			continue
		}
		if sx.rawQuote != 0 && c == sx.rawQuote {
			i = skipDelimited(code, i+1, string(c), false)
			continue
		}
		if strings.IndexByte(sx.quotes, c) >= 0 {
			if c == '\'' && sx.charLit {
				i = skipCharLiteral(code, i)
				continue
			}
			if !sx.wordStart || atWordStart(code, i) {
				i = skipDelimited(code, i+1, string(c), true)
				continue
			}
		}

		// Block comments.
		if open, closer, ok := matchBlock(code[i:], sx); ok {
			end := strings.Index(code[i+len(open):], closer)
			var stop int
			if end < 0 {
				stop = len(code)
			} else {
				stop = i + len(open) + end + len(closer)
			}
			innerStart := i + len(open)
			innerEnd := stop
			if end >= 0 {
				innerEnd = stop - len(closer)
			}
			// Doc comments open with extra stars: /** ... */
			for innerStart < innerEnd && code[innerStart] == '*' {
				innerStart++
			}
			ts, te := trimSpan(code, innerStart, innerEnd)
			out = append(out, comment{start: i, end: stop, textStart: ts, textEnd: te, block: true})
			i = stop
			continue
		}

		// Line comments.
		if marker, ok := matchLine(code, i, sx); ok {
			stop := strings.IndexByte(code[i:], '\n')
			if stop < 0 {
				stop = len(code)
			} else {
				stop += i
			}
			innerStart := i + len(marker)
			// Repeated markers and doc markers: ///, //!, ##, #!
			for innerStart < stop && (code[innerStart] == marker[0] || code[innerStart] == '!') {
				innerStart++
			}
			ts, te := trimSpan(code, innerStart, stop)
			out = append(out, comment{start: i, end: stop, textStart: ts, textEnd: te})
			i = stop
			continue
		}

		i++
	}
	return out
}

func matchBlock(s string, sx syntax) (string, string, bool) {
	for _, b := range sx.block {
		if strings.HasPrefix(s, b[0]) {
			return b[0], b[1], true
		}
	}
	return "", "", false
}

func matchLine(code string, i int, sx syntax) (string, bool) {
	for _, m := range sx.line {
		if !strings.HasPrefix(code[i:], m) {
			continue
		}
		if sx.wordStart && !atWordStart(code, i) {
			continue
		}
		// A shebang on the first line is not a comment to translate.
		if i == 0 && strings.HasPrefix(code, "#!") {
			continue
		}
		return m, true
	}
	return "", false
}

// atWordStart reports whether position i begins a line or follows
// whitespace or an opening bracket.
func atWordStart(code string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(code[:i])
	return unicode.IsSpace(r) || strings.ContainsRune("=:([{,;|&", r)
}

// skipDelimited returns the index just past the closing delimiter. When
// singleLine is set an unterminated string ends at the newline.
func skipDelimited(code string, i int, delim string, singleLine bool) int {
	for i < len(code) {
		if code[i] == '\\' && len(delim) == 1 && delim != "`" {
			i += 2
			continue
		}
		if singleLine && code[i] == '\n' {
			return i
		}
		if strings.HasPrefix(code[i:], delim) {
			return i + len(delim)
		}
		i++
	}
	return len(code)
}

// skipCharLiteral skips 'x' or '\n' style literals. A lone quote (a Rust
// lifetime, an apostrophe) is stepped over as an ordinary character.
func skipCharLiteral(code string, i int) int {
	rest := code[i+1:]
	if strings.HasPrefix(rest, `\`) && len(rest) > 2 {
		if end := strings.IndexByte(rest[2:], '\''); end >= 0 && end < 10 {
			return i + 1 + 2 + end + 1
		}
		return i + 1
	}
	_, size := utf8.DecodeRuneInString(rest)
	if size > 0 && size < len(rest) && rest[size] == '\'' {
		return i + 1 + size + 1
	}
	return i + 1
}

func trimSpan(code string, start, end int) (int, int) {
	for start < end {
		r, size := utf8.DecodeRuneInString(code[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(code[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	return start, end
}

// translatable reports whether a comment carries words worth translating,
// as opposed to separators like "// ------".
func translatable(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// sanitizeComment keeps a translated comment from breaking the code around
// it: line comments stay on one line, block comments never close early.
func sanitizeComment(text string, block bool) string {
	if block {
		return strings.ReplaceAll(text, "*/", "* /")
	}
	text = strings.ReplaceAll(text, "\r\n", " ")
	return strings.ReplaceAll(text, "\n", " ")
}

// spliceComments replaces the text of each comment with its translation.
// texts[i] belongs to comments[i]; an empty string keeps the original.
func spliceComments(code string, comments []comment, texts []string) string {
	var b strings.Builder
	b.Grow(len(code))
	prev := 0
	for i, cm := range comments {
		if texts[i] == "" {
			continue
		}
		b.WriteString(code[prev:cm.textStart])
		b.WriteString(sanitizeComment(texts[i], cm.block))
		prev = cm.textEnd
	}
	b.WriteString(code[prev:])
	return b.String()
}

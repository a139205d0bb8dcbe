package g

import (
	"fmt"
	"strings"
)

// Lexer tokenizes G source text.
//
// The '"' character is overloaded: when it immediately follows a send target
// (an object reference or an @-expression, with no intervening whitespace) it
// is emitted as the message operator TokQuote; everywhere else it opens a
// string literal. After an opening message operator whose payload is not an
// @-expression, the payload text up to the closing quote is emitted as a
// single TokString.
type Lexer struct {
	src string
	pos int

	// prevKind/adjacent track the previously emitted token and whether the
	// current position touches it (no whitespace consumed since).
	prevKind TokenKind
	adjacent bool
	inAtExpr bool

	// Send-payload state for the '"' overload.
	inSendPayload bool
	payloadString bool
}

// NewLexer creates a lexer over the given source.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, prevKind: TokEOF}
}

// LexError is a failure to tokenize G source.
type LexError struct {
	Reason string
	Span   Span
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %d: %s", e.Span.Start, e.Reason)
}

func isSymbolStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' ||
		strings.IndexByte("_-+*/%<>=!?^&", ch) >= 0
}

func isSymbolChar(ch byte) bool {
	return isSymbolStart(ch) || ch >= '0' && ch <= '9'
}

func isRefChar(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' ||
		ch >= '0' && ch <= '9' || ch == '_' || ch == '-'
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

// Next returns the next token, or a *LexError.
func (l *Lexer) Next() (Token, error) {
	if l.payloadString {
		return l.lexPayloadString()
	}

	l.skipSpaceAndComments()

	start := l.pos
	if l.pos >= len(l.src) {
		return l.emit(Token{Kind: TokEOF, Span: Span{start, start}}), nil
	}

	ch := l.src[l.pos]
	switch {
	case ch == '[':
		l.pos++
		return l.emit(Token{Kind: TokLBracket, Text: "[", Span: Span{start, l.pos}}), nil
	case ch == ']':
		l.pos++
		return l.emit(Token{Kind: TokRBracket, Text: "]", Span: Span{start, l.pos}}), nil
	case ch == ',':
		l.pos++
		return l.emit(Token{Kind: TokComma, Text: ",", Span: Span{start, l.pos}}), nil
	case ch == '@':
		l.pos++
		return l.emit(Token{Kind: TokAt, Text: "@", Span: Span{start, l.pos}}), nil
	case ch == '.':
		l.pos++
		return l.emit(Token{Kind: TokDot, Text: ".", Span: Span{start, l.pos}}), nil
	case ch == '"':
		if l.inSendPayload {
			// Closing quote of a send whose payload was an @-expression.
			l.inSendPayload = false
			l.pos++
			return l.emit(Token{Kind: TokQuote, Text: `"`, Span: Span{start, l.pos}}), nil
		}
		if l.adjacent && l.sendTargetEnded() {
			// Opening message operator.
			l.inSendPayload = true
			l.pos++
			if l.pos >= len(l.src) || l.src[l.pos] != '@' {
				l.payloadString = true
			}
			return l.emit(Token{Kind: TokQuote, Text: `"`, Span: Span{start, l.pos}}), nil
		}
		return l.lexString()
	case ch == '#':
		return l.lexObjRef()
	case isDigit(ch):
		return l.lexNumber()
	case ch == '+' || ch == '-':
		// Sign followed by a digit is a number; otherwise a symbol.
		if l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) {
			return l.lexNumber()
		}
		return l.lexSymbol()
	case isSymbolStart(ch):
		return l.lexSymbol()
	default:
		return Token{}, &LexError{Reason: fmt.Sprintf("unexpected character %q", ch), Span: Span{start, start + 1}}
	}
}

// Tokens lexes the whole source.
func (l *Lexer) Tokens() ([]Token, error) {
	var out []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == TokEOF {
			return out, nil
		}
	}
}

// sendTargetEnded reports whether the previous token could end a send target:
// a bare object reference, or the tail of an @-expression.
func (l *Lexer) sendTargetEnded() bool {
	if l.prevKind == TokObjRef {
		return true
	}
	return l.inAtExpr && l.prevKind == TokSymbol
}

// emit records token adjacency state used by the '"' overload.
func (l *Lexer) emit(tok Token) Token {
	switch tok.Kind {
	case TokAt:
		l.inAtExpr = true
	case TokSymbol, TokObjRef, TokDot:
		if !(l.inAtExpr && l.adjacent) {
			l.inAtExpr = false
		}
	default:
		l.inAtExpr = false
	}
	l.prevKind = tok.Kind
	l.adjacent = true
	return tok
}

func (l *Lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' {
			l.pos++
			l.adjacent = false
			continue
		}
		if ch == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			l.adjacent = false
			continue
		}
		return
	}
}

// lexPayloadString consumes the text of a send payload up to and including
// the closing quote and emits it as a single TokString.
func (l *Lexer) lexPayloadString() (Token, error) {
	l.payloadString = false
	start := l.pos
	s, err := l.lexQuotedBody(start)
	if err != nil {
		return Token{}, err
	}
	l.inSendPayload = false
	return l.emit(Token{Kind: TokString, Text: s, Span: Span{start, l.pos}}), nil
}

func (l *Lexer) lexString() (Token, error) {
	start := l.pos
	l.pos++ // opening quote
	s, err := l.lexQuotedBody(start)
	if err != nil {
		return Token{}, err
	}
	return l.emit(Token{Kind: TokString, Text: s, Span: Span{start, l.pos}}), nil
}

// lexQuotedBody reads string contents up to and including the closing quote,
// decoding \n \t \" \\ escapes.
func (l *Lexer) lexQuotedBody(start int) (string, error) {
	var sb strings.Builder
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		switch ch {
		case '"':
			l.pos++
			return sb.String(), nil
		case '\\':
			l.pos++
			if l.pos >= len(l.src) {
				return "", &LexError{Reason: "unterminated escape", Span: Span{start, l.pos}}
			}
			switch l.src[l.pos] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			default:
				return "", &LexError{
					Reason: fmt.Sprintf("unknown escape \\%c", l.src[l.pos]),
					Span:   Span{l.pos - 1, l.pos + 1},
				}
			}
			l.pos++
		default:
			sb.WriteByte(ch)
			l.pos++
		}
	}
	return "", &LexError{Reason: "unterminated string", Span: Span{start, l.pos}}
}

func (l *Lexer) lexObjRef() (Token, error) {
	start := l.pos
	l.pos++ // '#'
	sawColon := false
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if isRefChar(ch) {
			l.pos++
			continue
		}
		// At most one internal ':' introducing a namespace.
		if ch == ':' && !sawColon && l.pos+1 < len(l.src) && isRefChar(l.src[l.pos+1]) {
			sawColon = true
			l.pos++
			continue
		}
		break
	}
	if l.pos == start+1 {
		return Token{}, &LexError{Reason: "empty object reference", Span: Span{start, l.pos}}
	}
	return l.emit(Token{Kind: TokObjRef, Text: l.src[start:l.pos], Span: Span{start, l.pos}}), nil
}

func (l *Lexer) lexNumber() (Token, error) {
	start := l.pos
	if l.src[l.pos] == '+' || l.src[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	return l.emit(Token{Kind: TokNumber, Text: l.src[start:l.pos], Span: Span{start, l.pos}}), nil
}

func (l *Lexer) lexSymbol() (Token, error) {
	start := l.pos
	for l.pos < len(l.src) && isSymbolChar(l.src[l.pos]) {
		l.pos++
	}
	return l.emit(Token{Kind: TokSymbol, Text: l.src[start:l.pos], Span: Span{start, l.pos}}), nil
}

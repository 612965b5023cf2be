package syntax

import (
	"fmt"
	"strings"
	"unicode"
)

type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenNumber
	TokenString
	TokenKeyword
	TokenOperator
)

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "end of line"
	}
	return fmt.Sprintf("%q", t.Value)
}

var keywords = map[string]bool{
	"if":     true,
	"then":   true,
	"else":   true,
	"and":    true,
	"or":     true,
	"not":    true,
	"in":     true,
	"for":    true,
	"true":   true,
	"false":  true,
	"nil":    true,
	"import": true,
}

type Lexer struct {
	input   string
	pos     int
	readPos int
	ch      byte
}

func NewLexer() *Lexer {
	return &Lexer{}
}

// Tokenize splits one logical source line into tokens. Comments start with
// '#' and run to the end of input.
func (l *Lexer) Tokenize(input string) ([]Token, error) {
	l.input = input
	l.pos = 0
	l.readPos = 0
	l.ch = 0

	l.readChar()

	var tokens []Token

	for l.ch != 0 {
		l.skipWhitespace()

		if l.ch == 0 || l.ch == '#' {
			break
		}

		token, err := l.nextToken()
		if err != nil {
			return nil, err
		}

		tokens = append(tokens, token)
	}

	tokens = append(tokens, Token{Type: TokenEOF})
	return tokens, nil
}

func (l *Lexer) nextToken() (Token, error) {
	var token Token

	switch l.ch {
	case '=':
		switch l.peekChar() {
		case '=':
			l.readChar()
			token = Token{Type: TokenOperator, Value: "=="}
		case '?':
			l.readChar()
			token = Token{Type: TokenOperator, Value: "=?"}
		default:
			token = Token{Type: TokenOperator, Value: "="}
		}
	case '!':
		if l.peekChar() != '=' {
			return Token{}, fmt.Errorf("unexpected character: %c", l.ch)
		}
		l.readChar()
		token = Token{Type: TokenOperator, Value: "!="}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			token = Token{Type: TokenOperator, Value: "<="}
		} else {
			token = Token{Type: TokenOperator, Value: "<"}
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			token = Token{Type: TokenOperator, Value: ">="}
		} else {
			token = Token{Type: TokenOperator, Value: ">"}
		}
	case ':':
		if l.peekChar() == ':' {
			l.readChar()
			token = Token{Type: TokenOperator, Value: "::"}
		} else {
			token = Token{Type: TokenOperator, Value: ":"}
		}
	case '+', '-', '*', '/', '%', '(', ')', '[', ']', '{', '}', ',', '.':
		token = Token{Type: TokenOperator, Value: string(l.ch)}
	case '"', '\'':
		str, err := l.readString(l.ch)
		if err != nil {
			return Token{}, err
		}
		token = Token{Type: TokenString, Value: str}
	default:
		if isLetter(l.ch) {
			ident := l.readIdentifier()
			if keywords[ident] {
				return Token{Type: TokenKeyword, Value: ident}, nil
			}
			return Token{Type: TokenIdent, Value: ident}, nil
		} else if isDigit(l.ch) {
			return Token{Type: TokenNumber, Value: l.readNumber()}, nil
		}
		return Token{}, fmt.Errorf("unexpected character: %c", l.ch)
	}

	l.readChar()
	return token, nil
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) readString(quote byte) (string, error) {
	var str strings.Builder

	l.readChar() // skip opening quote

	for l.ch != quote && l.ch != 0 {
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				str.WriteByte('\n')
			case 't':
				str.WriteByte('\t')
			case '\\':
				str.WriteByte('\\')
			case '"', '\'':
				str.WriteByte(l.ch)
			default:
				return "", fmt.Errorf("invalid escape sequence: \\%c", l.ch)
			}
		} else {
			str.WriteByte(l.ch)
		}
		l.readChar()
	}

	if l.ch != quote {
		return "", fmt.Errorf("unterminated string")
	}

	return str.String(), nil
}

func (l *Lexer) readIdentifier() string {
	position := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.pos]
}

// readNumber reads an integer or a decimal with a single fractional part.
func (l *Lexer) readNumber() string {
	position := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[position:l.pos]
}

func isLetter(ch byte) bool {
	return ch == '_' || unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

package kea

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

type TokenType uint64
type stateFunc func(l *Lexer) stateFunc

const EOF rune = 0

//go:generate stringer -type=TokenType -trimprefix=Token
const (
	TokenError TokenType = iota
	TokenEOF

	TokenDef
	TokenExtern
	TokenIf
	TokenThen
	TokenElse
	TokenFor
	TokenIn

	TokenIdentifier
	TokenNumber
	TokenChar
)

var keywordTable = map[string]TokenType{
	"def":    TokenDef,
	"extern": TokenExtern,
	"if":     TokenIf,
	"then":   TokenThen,
	"else":   TokenElse,
	"for":    TokenFor,
	"in":     TokenIn,
}

// Location is a line:column source position, 1-based.
type Location struct {
	Line int
	Col  int
}

func (l *Location) String() string {
	if l == nil {
		return "-"
	}

	return fmt.Sprintf("%d:%d", l.Line, l.Col)
}

type Token struct {
	Typ   TokenType
	Value string
	Num   float64
	Loc   *Location
}

func (t Token) isValid() bool {
	return t.Typ != TokenError && t.Typ != TokenEOF
}

// Tokenizer is the lexer contract the parser pulls tokens through.
type Tokenizer interface {
	Do()
	Get() Token
	GetFilename() string
}

type Lexer struct {
	filename string
	reader   *bufio.Reader
	done     chan Token

	line int
	col  int
}

func NewLexer(reader io.Reader) *Lexer {
	return NewNamedLexer("input", reader)
}

func NewNamedLexer(filename string, reader io.Reader) *Lexer {
	return &Lexer{
		filename: filename,
		reader:   bufio.NewReader(reader),
		done:     make(chan Token),
		line:     1,
	}
}

func (l *Lexer) GetFilename() string {
	return l.filename
}

func (l *Lexer) Chan() chan Token {
	return l.done
}

func (l *Lexer) Do() {
	l.Run()
}

func (l *Lexer) Get() Token {
	return <-l.done
}

func (l *Lexer) Run() {
	for state := defaultState; state != nil; {
		state = state(l)
	}

	close(l.done)
}

func (l *Lexer) RunBlocking() ([]Token, error) {
	go l.Run()

	var tokens []Token
	for t := range l.done {
		if t.Typ == TokenEOF {
			return tokens, nil
		}

		if t.Typ == TokenError {
			return nil, errors.New(t.Value)
		}

		tokens = append(tokens, t)
	}

	return tokens, nil
}

func defaultState(l *Lexer) stateFunc {
	for {
		switch r := l.peek(); {
		case r == EOF:
			l.done <- Token{Typ: TokenEOF, Loc: l.loc()}
			return nil
		case unicode.IsSpace(r):
			l.next()
			continue
		case r == '#':
			return commentState
		case unicode.IsLetter(r):
			return identifierState
		case '0' <= r && r <= '9' || r == '.':
			return numberState
		default:
			return charState
		}
	}
}

func identifierState(l *Lexer) stateFunc {
	loc := l.loc()

	var id strings.Builder
	for r := l.peek(); unicode.IsLetter(r) || unicode.IsDigit(r); r = l.peek() {
		id.WriteRune(l.next())
	}

	if t, ok := keywordTable[id.String()]; ok {
		return l.emit(t, id.String(), loc)
	}

	return l.emit(TokenIdentifier, id.String(), loc)
}

func numberState(l *Lexer) stateFunc {
	loc := l.loc()

	var num strings.Builder
	for r := l.peek(); '0' <= r && r <= '9' || r == '.'; r = l.peek() {
		num.WriteRune(l.next())
	}

	// Malformed literals such as "1.2.3" lex as the number 0.
	val, err := strconv.ParseFloat(num.String(), 64)
	if err != nil {
		val = 0
	}

	l.done <- Token{
		Typ:   TokenNumber,
		Value: num.String(),
		Num:   val,
		Loc:   loc,
	}

	return defaultState
}

// commentState consumes a '#' comment until end of line, emitting nothing.
func commentState(l *Lexer) stateFunc {
	for r := l.peek(); r != '\n' && r != EOF; r = l.peek() {
		l.next()
	}

	return defaultState
}

func charState(l *Lexer) stateFunc {
	loc := l.loc()
	r := l.next()

	return l.emit(TokenChar, string(r), loc)
}

func (l *Lexer) emit(t TokenType, val string, loc *Location) stateFunc {
	l.done <- Token{
		Typ:   t,
		Value: val,
		Loc:   loc,
	}

	return defaultState
}

// loc is the position of the next unread rune.
func (l *Lexer) loc() *Location {
	return &Location{Line: l.line, Col: l.col + 1}
}

func (l *Lexer) peek() rune {
	r, _, err := l.reader.ReadRune()
	if err != nil {
		return EOF
	}

	_ = l.reader.UnreadRune()

	return r
}

func (l *Lexer) next() rune {
	r, _, err := l.reader.ReadRune()
	if err != nil {
		return EOF
	}

	if r == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}

	return r
}

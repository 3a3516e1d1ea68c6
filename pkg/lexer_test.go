package kea

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.kea.dev/internal/test"
)

func TestLexer(t *testing.T) {
	cases := []struct {
		data   string
		expect []Token
	}{
		{
			"def foo(a, b) a + b",
			[]Token{
				{Typ: TokenDef, Value: "def"},
				{Typ: TokenIdentifier, Value: "foo"},
				{Typ: TokenChar, Value: "("},
				{Typ: TokenIdentifier, Value: "a"},
				{Typ: TokenChar, Value: ","},
				{Typ: TokenIdentifier, Value: "b"},
				{Typ: TokenChar, Value: ")"},
				{Typ: TokenIdentifier, Value: "a"},
				{Typ: TokenChar, Value: "+"},
				{Typ: TokenIdentifier, Value: "b"},
			},
		},
		{
			"extern sin(x)",
			[]Token{
				{Typ: TokenExtern, Value: "extern"},
				{Typ: TokenIdentifier, Value: "sin"},
				{Typ: TokenChar, Value: "("},
				{Typ: TokenIdentifier, Value: "x"},
				{Typ: TokenChar, Value: ")"},
			},
		},
		{
			"if x < 3 then 1 else 2",
			[]Token{
				{Typ: TokenIf, Value: "if"},
				{Typ: TokenIdentifier, Value: "x"},
				{Typ: TokenChar, Value: "<"},
				{Typ: TokenNumber, Value: "3", Num: 3},
				{Typ: TokenThen, Value: "then"},
				{Typ: TokenNumber, Value: "1", Num: 1},
				{Typ: TokenElse, Value: "else"},
				{Typ: TokenNumber, Value: "2", Num: 2},
			},
		},
		{
			"for i = 1, 10, 2 in i",
			[]Token{
				{Typ: TokenFor, Value: "for"},
				{Typ: TokenIdentifier, Value: "i"},
				{Typ: TokenChar, Value: "="},
				{Typ: TokenNumber, Value: "1", Num: 1},
				{Typ: TokenChar, Value: ","},
				{Typ: TokenNumber, Value: "10", Num: 10},
				{Typ: TokenChar, Value: ","},
				{Typ: TokenNumber, Value: "2", Num: 2},
				{Typ: TokenIn, Value: "in"},
				{Typ: TokenIdentifier, Value: "i"},
			},
		},
		{
			"3.14",
			[]Token{
				{Typ: TokenNumber, Value: "3.14", Num: 3.14},
			},
		},
		{
			// Malformed literals lex as 0.
			"12.34.56",
			[]Token{
				{Typ: TokenNumber, Value: "12.34.56", Num: 0},
			},
		},
		{
			"# a comment\n42",
			[]Token{
				{Typ: TokenNumber, Value: "42", Num: 42},
			},
		},
		{
			"# only a comment",
			nil,
		},
		{
			"únicódeShouldBeVàlid",
			[]Token{
				{Typ: TokenIdentifier, Value: "únicódeShouldBeVàlid"},
			},
		},
		{
			"",
			nil,
		},
	}

	for _, c := range cases {
		r := strings.NewReader(c.data)
		l := NewLexer(r)

		toks, err := l.RunBlocking()
		assert.NoError(t, err)
		assert.Equal(t, c.expect, stripLocs(toks), "case: %q", c.data)
	}
}

func TestLexerLocations(t *testing.T) {
	l := NewLexer(strings.NewReader("a\n  b"))

	toks, err := l.RunBlocking()
	assert.NoError(t, err)

	assert.Equal(t, []Token{
		{Typ: TokenIdentifier, Value: "a", Loc: &Location{Line: 1, Col: 1}},
		{Typ: TokenIdentifier, Value: "b", Loc: &Location{Line: 2, Col: 3}},
	}, toks)
}

func stripLocs(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, tok := range toks {
		tok.Loc = nil
		out = append(out, tok)
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

// Use a package-level variable to avoid compiler optimisation
var benchResult []Token

func benchmarkLexer(size int, b *testing.B) {
	for n := 0; n < b.N; n++ {
		// Setup
		b.StopTimer()
		data := test.GetRandomTokens(size)
		r := strings.NewReader(data)
		l := NewLexer(r)

		var err error
		b.StartTimer()

		benchResult, err = l.RunBlocking()
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLexer100(b *testing.B) {
	benchmarkLexer(100, b)
}

func BenchmarkLexer1000(b *testing.B) {
	benchmarkLexer(1000, b)
}

func BenchmarkLexer10000(b *testing.B) {
	benchmarkLexer(10000, b)
}

func BenchmarkLexer100000(b *testing.B) {
	benchmarkLexer(100000, b)
}

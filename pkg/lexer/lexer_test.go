package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allTokens(source string) []Token {
	lex := New(source)
	var toks []Token
	for {
		tok := lex.NextToken()
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks
		}
	}
}

func TestSingleAndTwoCharTokens(t *testing.T) {
	toks := allTokens("(){};,.+-*/! != = == < <= > >=")
	types := make([]TokenType, 0, len(toks))
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		TokenLeftParen, TokenRightParen, TokenLeftBrace, TokenRightBrace,
		TokenSemicolon, TokenComma, TokenDot, TokenPlus, TokenMinus,
		TokenStar, TokenSlash, TokenBang, TokenBangEqual, TokenEqual,
		TokenEqualEqual, TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual,
		TokenEOF,
	}, types)
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := allTokens("class fun var myVar _private break")
	assert.Equal(t, TokenClass, toks[0].Type)
	assert.Equal(t, TokenFun, toks[1].Type)
	assert.Equal(t, TokenVar, toks[2].Type)
	assert.Equal(t, TokenIdentifier, toks[3].Type)
	assert.Equal(t, "myVar", toks[3].Lexeme)
	assert.Equal(t, TokenIdentifier, toks[4].Type)
	assert.Equal(t, TokenBreak, toks[5].Type)
}

func TestStringLiteral(t *testing.T) {
	toks := allTokens(`"hello world"`)
	require.Equal(t, TokenString, toks[0].Type)
	assert.Equal(t, `"hello world"`, toks[0].Lexeme)
}

func TestUnterminatedStringIsError(t *testing.T) {
	toks := allTokens(`"oops`)
	require.Equal(t, TokenError, toks[0].Type)
	assert.Contains(t, toks[0].Lexeme, "Unterminated")
}

func TestIntegerVsFloatTagging(t *testing.T) {
	toks := allTokens("42 3.14 1e10 2.5e-3 7_000")
	assert.Equal(t, TokenInteger, toks[0].Type)
	assert.Equal(t, TokenFloat, toks[1].Type)
	assert.Equal(t, TokenFloat, toks[2].Type)
	assert.Equal(t, TokenFloat, toks[3].Type)
	assert.Equal(t, TokenInteger, toks[4].Type)
}

func TestDigitSeparatorsStrippedBeforeParse(t *testing.T) {
	assert.Equal(t, "1000000", StripDigitSeparators("1_000_000"))
	assert.Equal(t, "3.14", StripDigitSeparators("3.14"))
}

func TestLineCommentsAreSkipped(t *testing.T) {
	toks := allTokens("var x; // this is ignored\nvar y;")
	assert.Equal(t, TokenVar, toks[0].Type)
	assert.Equal(t, TokenIdentifier, toks[1].Type)
	assert.Equal(t, TokenSemicolon, toks[2].Type)
	assert.Equal(t, TokenVar, toks[3].Type)
	assert.Equal(t, 2, toks[3].Line)
}

func TestUnexpectedCharacterIsError(t *testing.T) {
	toks := allTokens("@")
	require.Equal(t, TokenError, toks[0].Type)
	assert.Contains(t, toks[0].Lexeme, "Unexpected character")
}

package xcontent

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectTokens(t *testing.T, data string) []Token {
	t.Helper()
	p := NewParser([]byte(data))
	defer p.Close()
	var tokens []Token
	for {
		tok, err := p.Next()
		if err == io.EOF {
			return tokens
		}
		require.NoError(t, err)
		tokens = append(tokens, tok)
	}
}

func TestParser_TokenStream(t *testing.T) {
	tokens := collectTokens(t, `{"name":"anansi","count":3,"ok":true,"none":null}`)
	assert.Equal(t, []Token{
		TokenStartObject,
		TokenFieldName, TokenString,
		TokenFieldName, TokenNumber,
		TokenFieldName, TokenBool,
		TokenFieldName, TokenNull,
		TokenEndObject,
	}, tokens)
}

func TestParser_FieldNameVersusStringValue(t *testing.T) {
	p := NewParser([]byte(`{"outer":{"inner":"value"}}`))
	defer p.Close()

	expectations := []struct {
		token Token
		name  string
		value any
	}{
		{TokenStartObject, "", nil},
		{TokenFieldName, "outer", nil},
		{TokenStartObject, "", nil},
		{TokenFieldName, "inner", nil},
		{TokenString, "", "value"},
		{TokenEndObject, "", nil},
		{TokenEndObject, "", nil},
	}
	for _, want := range expectations {
		tok, err := p.Next()
		require.NoError(t, err)
		assert.Equal(t, want.token, tok)
		if want.name != "" {
			assert.Equal(t, want.name, p.FieldName())
		}
		if want.value != nil {
			assert.Equal(t, want.value, p.Value())
		}
	}
}

func TestParser_NumbersKeepPrecision(t *testing.T) {
	p := NewParser([]byte(`{"big":9007199254740993}`))
	defer p.Close()

	for {
		tok, err := p.Next()
		require.NoError(t, err)
		if tok == TokenNumber {
			n, ok := p.Value().(json.Number)
			require.True(t, ok)
			v, err := n.Int64()
			require.NoError(t, err)
			assert.Equal(t, int64(9007199254740993), v)
			return
		}
	}
}

func TestParser_Skip(t *testing.T) {
	p := NewParser([]byte(`{"skipped":{"deep":[1,{"deeper":true}]},"after":"here"}`))
	defer p.Close()

	tok, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, TokenStartObject, tok)

	tok, err = p.Next()
	require.NoError(t, err)
	require.Equal(t, TokenFieldName, tok)
	require.Equal(t, "skipped", p.FieldName())

	tok, err = p.Next()
	require.NoError(t, err)
	require.Equal(t, TokenStartObject, tok)
	require.NoError(t, p.Skip())

	tok, err = p.Next()
	require.NoError(t, err)
	assert.Equal(t, TokenFieldName, tok)
	assert.Equal(t, "after", p.FieldName())
}

func TestParser_EmptyInputReturnsEOF(t *testing.T) {
	p := NewParser(nil)
	defer p.Close()
	_, err := p.Next()
	assert.Equal(t, io.EOF, err)
}

func TestParser_MalformedContent(t *testing.T) {
	p := NewParser([]byte(`{"a":`))
	defer p.Close()
	var err error
	for err == nil {
		_, err = p.Next()
	}
	assert.NotEqual(t, io.EOF, err)
	assert.ErrorContains(t, err, "malformed content")
}

func TestParser_MapRoundTrip(t *testing.T) {
	src := map[string]any{"a": "x", "b": map[string]any{"c": true}}
	data, err := MapToBytes(src)
	require.NoError(t, err)

	p := NewParser(data)
	defer p.Close()
	got, err := p.Map()
	require.NoError(t, err)
	assert.Equal(t, "x", got["a"])
	nested, ok := got["b"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, nested["c"])
}

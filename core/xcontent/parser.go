// Package xcontent exposes raw document bytes as a stream of structural
// tokens, the boundary through which the mapping engine consumes input
// documents. The built-in implementation is backed by encoding/json.
package xcontent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Token identifies one structural element of a document stream.
type Token int

const (
	TokenStartObject Token = iota
	TokenEndObject
	TokenStartArray
	TokenEndArray
	TokenFieldName
	TokenString
	TokenNumber
	TokenBool
	TokenNull
)

func (t Token) String() string {
	switch t {
	case TokenStartObject:
		return "START_OBJECT"
	case TokenEndObject:
		return "END_OBJECT"
	case TokenStartArray:
		return "START_ARRAY"
	case TokenEndArray:
		return "END_ARRAY"
	case TokenFieldName:
		return "FIELD_NAME"
	case TokenString:
		return "VALUE_STRING"
	case TokenNumber:
		return "VALUE_NUMBER"
	case TokenBool:
		return "VALUE_BOOLEAN"
	case TokenNull:
		return "VALUE_NULL"
	}
	return fmt.Sprintf("Token(%d)", int(t))
}

// Parser yields tokens from a single document. Implementations are not safe
// for concurrent use; one parser serves exactly one parse invocation.
type Parser interface {
	// Next advances to the next token. It returns io.EOF once the document
	// is exhausted.
	Next() (Token, error)
	// FieldName returns the name from the most recent TokenFieldName.
	FieldName() string
	// Value returns the scalar from the most recent value token: string,
	// json.Number, bool or nil.
	Value() any
	// Skip consumes the children of the container whose start token was
	// just returned. It is a no-op after a scalar token.
	Skip() error
	// Map materializes the next value as a map. Valid before any token has
	// been consumed, or immediately after a TokenFieldName whose value is
	// an object.
	Map() (map[string]any, error)
	Close() error
}

type frame struct {
	object    bool
	expectKey bool
}

type jsonParser struct {
	dec       *json.Decoder
	stack     []frame
	fieldName string
	value     any
	lastToken Token
}

// NewParser creates a Parser over raw JSON bytes. Numbers are surfaced as
// json.Number so integer precision survives the trip.
func NewParser(data []byte) Parser {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return &jsonParser{dec: dec}
}

func (p *jsonParser) Next() (Token, error) {
	tok, err := p.dec.Token()
	if err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("malformed content: %w", err)
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			p.stack = append(p.stack, frame{object: true, expectKey: true})
			return p.emit(TokenStartObject), nil
		case '[':
			p.stack = append(p.stack, frame{})
			return p.emit(TokenStartArray), nil
		case '}':
			p.pop()
			return p.emit(TokenEndObject), nil
		case ']':
			p.pop()
			return p.emit(TokenEndArray), nil
		}
	case string:
		if n := len(p.stack); n > 0 && p.stack[n-1].object && p.stack[n-1].expectKey {
			p.fieldName = t
			p.stack[n-1].expectKey = false
			return p.emit(TokenFieldName), nil
		}
		p.value = t
		p.valueDone()
		return p.emit(TokenString), nil
	case json.Number:
		p.value = t
		p.valueDone()
		return p.emit(TokenNumber), nil
	case bool:
		p.value = t
		p.valueDone()
		return p.emit(TokenBool), nil
	case nil:
		p.value = nil
		p.valueDone()
		return p.emit(TokenNull), nil
	}
	return 0, fmt.Errorf("unexpected token %v", tok)
}

func (p *jsonParser) emit(t Token) Token {
	p.lastToken = t
	return t
}

// pop closes the current container and marks the enclosing object, if any,
// as expecting a key again.
func (p *jsonParser) pop() {
	if len(p.stack) > 0 {
		p.stack = p.stack[:len(p.stack)-1]
	}
	p.valueDone()
}

func (p *jsonParser) valueDone() {
	if n := len(p.stack); n > 0 && p.stack[n-1].object {
		p.stack[n-1].expectKey = true
	}
}

func (p *jsonParser) FieldName() string {
	return p.fieldName
}

func (p *jsonParser) Value() any {
	return p.value
}

func (p *jsonParser) Skip() error {
	if p.lastToken != TokenStartObject && p.lastToken != TokenStartArray {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := p.Next()
		if err != nil {
			return err
		}
		switch tok {
		case TokenStartObject, TokenStartArray:
			depth++
		case TokenEndObject, TokenEndArray:
			depth--
		}
	}
	return nil
}

func (p *jsonParser) Map() (map[string]any, error) {
	var m map[string]any
	if err := p.dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to materialize document: %w", err)
	}
	return m, nil
}

func (p *jsonParser) Close() error {
	return nil
}

// MapToBytes serializes a document map back into raw bytes, the inverse of
// Parser.Map. Used to re-open a token stream after source transforms ran.
func MapToBytes(m map[string]any) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize document map: %w", err)
	}
	return data, nil
}

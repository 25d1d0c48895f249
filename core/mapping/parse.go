package mapping

import (
	"fmt"
	"io"

	"github.com/asaidimu/go-docmap/core/document"
	"github.com/asaidimu/go-docmap/core/xcontent"
)

// Parse maps one document into its indexable form. See ParseWithListener.
func (m *DocumentMapper) Parse(source *SourceToParse) (*ParsedDocument, error) {
	return m.ParseWithListener(source, nil)
}

// ParseWithListener maps one document into its indexable form, consulting
// the listener before each field is committed. The parse never mutates the
// input; dynamic discovery may mutate the schema, which the result reports
// through MappingsModified. Safe for concurrent use.
func (m *DocumentMapper) ParseWithListener(source *SourceToParse, listener ParseListener) (*ParsedDocument, error) {
	if m.closed.Load() {
		return nil, fmt.Errorf("mapper for type [%s] is closed", m.typ)
	}
	if source.Type != "" && source.Type != m.typ {
		return nil, &StructuralError{
			Reason: fmt.Sprintf("Type mismatch, provide type [%s] but mapper is of type [%s]", source.Type, m.typ),
		}
	}

	ctx := m.contextPool.Get().(*ParseContext)
	defer func() {
		ctx.reset(nil, nil, nil, nil)
		m.contextPool.Put(ctx)
	}()

	raw := source.Source
	parser := source.Parser
	if parser == nil {
		if len(raw) == 0 {
			return nil, &EmptyDocumentError{}
		}
		if len(m.transforms) > 0 {
			transformed, err := m.transformRaw(raw)
			if err != nil {
				return nil, err
			}
			raw = transformed
		}
		parser = xcontent.NewParser(raw)
		defer parser.Close()
	} else if len(m.transforms) > 0 {
		// A caller-supplied stream still goes through the transform chain:
		// materialize it, transform, and continue over a fresh stream. The
		// caller keeps ownership of its own parser.
		src, err := parser.Map()
		if err != nil {
			return nil, &ParsingError{Cause: err}
		}
		transformed, err := m.applyTransforms(src)
		if err != nil {
			return nil, err
		}
		raw, err = xcontent.MapToBytes(transformed)
		if err != nil {
			return nil, &TransformError{Cause: err}
		}
		parser = xcontent.NewParser(raw)
		defer parser.Close()
	}

	request := *source
	request.Source = raw
	ctx.reset(parser, document.NewDocument(), &request, listener)

	if err := m.runParse(ctx, parser); err != nil {
		return nil, m.wrapParseError(ctx, err)
	}

	docs := make([]*document.Document, len(ctx.docs))
	copy(docs, ctx.docs)
	if len(docs) > 1 {
		for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
			docs[i], docs[j] = docs[j], docs[i]
		}
	}
	applyDocBoost(docs, ctx.docBoost)

	return &ParsedDocument{
		UID:              ctx.uid,
		ID:               ctx.id,
		Version:          ctx.version,
		Type:             m.typ,
		Routing:          ctx.routing,
		Timestamp:        ctx.timestamp,
		TTL:              request.TTL,
		Docs:             docs,
		Source:           raw,
		MappingsModified: ctx.mappingsModified,
		Parent:           request.Parent,
	}, nil
}

// runParse drives one parse: leading token check, pre hooks, object tree
// walk, post hooks.
func (m *DocumentMapper) runParse(ctx *ParseContext, parser xcontent.Parser) error {
	tok, err := parser.Next()
	if err == io.EOF {
		return &EmptyDocumentError{}
	}
	if err != nil {
		return err
	}
	if tok != xcontent.TokenStartObject {
		return &StructuralError{Reason: "Malformed content, must start with an object"}
	}

	for _, kind := range HandlerOrder {
		if err := m.handlers[kind].PreParse(ctx); err != nil {
			return err
		}
	}

	tok, err = parser.Next()
	if err != nil {
		return err
	}
	switch tok {
	case xcontent.TokenEndObject:
		// Empty body; the document carries only handler fields.
	case xcontent.TokenFieldName:
		if m.root.enabled {
			if err := m.root.parseBody(ctx, parser.FieldName()); err != nil {
				return err
			}
		}
	default:
		return &StructuralError{Reason: fmt.Sprintf("Malformed content, after first object, either the type field or the actual properties should exist, got [%s]", tok)}
	}

	for _, kind := range HandlerOrder {
		if err := m.handlers[kind].PostParse(ctx); err != nil {
			return err
		}
	}
	return nil
}

// transformRaw materializes the raw source, runs the transform chain, and
// re-serializes the result.
func (m *DocumentMapper) transformRaw(raw []byte) ([]byte, error) {
	parser := xcontent.NewParser(raw)
	defer parser.Close()
	src, err := parser.Map()
	if err != nil {
		return nil, &ParsingError{Cause: err}
	}
	transformed, err := m.applyTransforms(src)
	if err != nil {
		return nil, err
	}
	out, err := xcontent.MapToBytes(transformed)
	if err != nil {
		return nil, &TransformError{Cause: err}
	}
	return out, nil
}

// wrapParseError stamps the mappings-modified flag on typed errors and
// wraps everything else in a ParsingError. Dynamic mapper additions are
// kept even when the parse fails.
func (m *DocumentMapper) wrapParseError(ctx *ParseContext, err error) error {
	switch e := err.(type) {
	case *StructuralError:
		e.MappingsModified = ctx.mappingsModified
		return e
	case *EmptyDocumentError:
		e.MappingsModified = ctx.mappingsModified
		return e
	case *TransformError:
		return e
	case *ParsingError:
		e.MappingsModified = ctx.mappingsModified
		return e
	}
	return &ParsingError{Cause: err, MappingsModified: ctx.mappingsModified}
}

// applyDocBoost multiplies the document-wide boost into the first
// norm-bearing occurrence of each field name, per sub-document.
func applyDocBoost(docs []*document.Document, boost float64) {
	if boost == 1.0 {
		return
	}
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, f := range doc.Fields() {
			if !f.Indexed() || f.OmitNorms {
				continue
			}
			if _, ok := seen[f.Name]; ok {
				continue
			}
			seen[f.Name] = struct{}{}
			f.Boost *= boost
		}
	}
}

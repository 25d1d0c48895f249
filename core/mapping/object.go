package mapping

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/asaidimu/go-docmap/core/xcontent"
)

// Nested describes how an object's content relates to the documents the
// parse produces.
type Nested string

const (
	// NestedNone flattens the object's fields into the enclosing document.
	NestedNone Nested = "none"
	// NestedArray marks an array-of-objects field; its fields still flatten
	// into the enclosing document.
	NestedArray Nested = "array"
	// NestedDocument isolates matching content into its own sub-document.
	NestedDocument Nested = "nested"
)

// IsNested reports whether content under this mode becomes a separate
// sub-document.
func (n Nested) IsNested() bool { return n == NestedDocument }

// Dynamic controls how unknown keys are handled during parsing.
type Dynamic string

const (
	DynamicTrue   Dynamic = "true"   // Create mappers for unknown keys
	DynamicFalse  Dynamic = "false"  // Silently ignore unknown keys
	DynamicStrict Dynamic = "strict" // Fail the parse on unknown keys
)

// ObjectMapper describes one nesting level of the document shape: its leaf
// fields plus child object nodes. The children map is copy-on-read under a
// mutex so concurrent parses can race dynamic additions safely.
type ObjectMapper struct {
	name     string
	fullPath string
	nested   Nested
	dynamic  Dynamic
	enabled  bool

	mu       sync.RWMutex
	children map[string]Mapper

	// boostField is only set on the root object; a root-level key with this
	// name captures the document-wide boost instead of mapping a field.
	boostField string
}

// NewObjectMapper creates an enabled, dynamic object node. fullPath is the
// dotted path of the node, unique within a schema.
func NewObjectMapper(name, fullPath string) *ObjectMapper {
	return &ObjectMapper{
		name:     name,
		fullPath: fullPath,
		nested:   NestedNone,
		dynamic:  DynamicTrue,
		enabled:  true,
		children: make(map[string]Mapper),
	}
}

func (om *ObjectMapper) Name() string { return om.name }

// FullPath returns the dotted path of this node from the document root.
func (om *ObjectMapper) FullPath() string { return om.fullPath }

func (om *ObjectMapper) Nested() Nested { return om.nested }

// SetNested sets the nesting mode. Must be called before the mapper is used
// for parsing.
func (om *ObjectMapper) SetNested(nested Nested) *ObjectMapper {
	om.nested = nested
	return om
}

// SetDynamic sets the unknown-key policy for this node.
func (om *ObjectMapper) SetDynamic(dynamic Dynamic) *ObjectMapper {
	om.dynamic = dynamic
	return om
}

// SetEnabled toggles whether content under this node is parsed at all.
func (om *ObjectMapper) SetEnabled(enabled bool) *ObjectMapper {
	om.enabled = enabled
	return om
}

// NestedTypeFilter is the type filter identifying sub-documents produced by
// this node, resolved through the bitset filter cache at query time.
func (om *ObjectMapper) NestedTypeFilter() string {
	return "__" + om.fullPath
}

// Put adds a child mapper, replacing any existing child of the same name.
func (om *ObjectMapper) Put(m Mapper) *ObjectMapper {
	om.mu.Lock()
	om.children[m.Name()] = m
	om.mu.Unlock()
	return om
}

// putIfAbsent adds a child unless one already exists, returning the mapper
// that is in place afterwards. Used by dynamic discovery, where two parses
// may race the same new key.
func (om *ObjectMapper) putIfAbsent(m Mapper) (Mapper, bool) {
	om.mu.Lock()
	defer om.mu.Unlock()
	if existing, ok := om.children[m.Name()]; ok {
		return existing, false
	}
	om.children[m.Name()] = m
	return m, true
}

// Child returns the child mapper of the given name, or nil.
func (om *ObjectMapper) Child(name string) Mapper {
	om.mu.RLock()
	defer om.mu.RUnlock()
	return om.children[name]
}

// childNames returns the child names in lexical order.
func (om *ObjectMapper) childNames() []string {
	om.mu.RLock()
	names := make([]string, 0, len(om.children))
	for name := range om.children {
		names = append(names, name)
	}
	om.mu.RUnlock()
	sort.Strings(names)
	return names
}

// traverseFields visits every leaf field mapper under this node, depth first.
func (om *ObjectMapper) traverseFields(fn func(*FieldMapper)) {
	for _, name := range om.childNames() {
		switch child := om.Child(name).(type) {
		case *FieldMapper:
			fn(child)
		case *ObjectMapper:
			child.traverseFields(fn)
		}
	}
}

// traverseObjects visits this node and every object node under it.
func (om *ObjectMapper) traverseObjects(fn func(*ObjectMapper)) {
	fn(om)
	for _, name := range om.childNames() {
		if child, ok := om.Child(name).(*ObjectMapper); ok {
			child.traverseObjects(fn)
		}
	}
}

// parseBody consumes the body of this object. The opening brace and the
// first field name have already been consumed by the caller.
func (om *ObjectMapper) parseBody(ctx *ParseContext, firstField string) error {
	fieldName := firstField
	for {
		if err := om.parseField(ctx, fieldName); err != nil {
			return err
		}
		tok, err := ctx.parser.Next()
		if err != nil {
			return err
		}
		switch tok {
		case xcontent.TokenEndObject:
			return nil
		case xcontent.TokenFieldName:
			fieldName = ctx.parser.FieldName()
		default:
			return &StructuralError{
				Reason:           fmt.Sprintf("malformed content, expected a field name but got [%s]", tok),
				MappingsModified: ctx.mappingsModified,
			}
		}
	}
}

// parseField consumes the value of one field.
func (om *ObjectMapper) parseField(ctx *ParseContext, name string) error {
	if om.boostField != "" && name == om.boostField {
		return om.parseBoost(ctx)
	}

	tok, err := ctx.parser.Next()
	if err != nil {
		return err
	}
	switch tok {
	case xcontent.TokenStartObject:
		return om.parseObjectValue(ctx, name)
	case xcontent.TokenStartArray:
		return om.parseArrayValue(ctx, name)
	case xcontent.TokenNull:
		return nil
	default:
		return om.parseScalarValue(ctx, name, ctx.parser.Value())
	}
}

func (om *ObjectMapper) parseBoost(ctx *ParseContext) error {
	tok, err := ctx.parser.Next()
	if err != nil {
		return err
	}
	if tok != xcontent.TokenNumber {
		return fmt.Errorf("boost field [%s] must hold a number, got [%s]", om.boostField, tok)
	}
	boost, err := ctx.parser.Value().(json.Number).Float64()
	if err != nil {
		return err
	}
	ctx.docBoost = boost
	return nil
}

func (om *ObjectMapper) parseObjectValue(ctx *ParseContext, name string) error {
	child, err := om.resolveObjectChild(ctx, name)
	if err != nil {
		return err
	}
	if child == nil || !child.enabled {
		return ctx.parser.Skip()
	}

	if child.nested.IsNested() {
		ctx.beginNestedDoc(child)
		defer ctx.endNestedDoc()
	}

	ctx.path.Add(name)
	defer ctx.path.Remove()

	tok, err := ctx.parser.Next()
	if err != nil {
		return err
	}
	switch tok {
	case xcontent.TokenEndObject:
		return nil
	case xcontent.TokenFieldName:
		return child.parseBody(ctx, ctx.parser.FieldName())
	default:
		return &StructuralError{
			Reason:           fmt.Sprintf("malformed content, expected a field name but got [%s]", tok),
			MappingsModified: ctx.mappingsModified,
		}
	}
}

// resolveObjectChild finds or dynamically creates the object mapper for a
// key whose value is an object. A nil result means the subtree is ignored.
func (om *ObjectMapper) resolveObjectChild(ctx *ParseContext, name string) (*ObjectMapper, error) {
	child := om.Child(name)
	if child != nil {
		obj, ok := child.(*ObjectMapper)
		if !ok {
			return nil, fmt.Errorf("tried to parse field [%s] as object, but it is mapped as a concrete field", ctx.path.PathAsText(name))
		}
		return obj, nil
	}

	switch om.dynamic {
	case DynamicStrict:
		return nil, fmt.Errorf("mapping set to strict, dynamic introduction of [%s] within [%s] is not allowed", name, om.fullPath)
	case DynamicFalse:
		return nil, nil
	}

	created := NewObjectMapper(name, ctx.path.PathAsText(name)).SetDynamic(om.dynamic)
	return ctx.mapper.addDynamicObjectMapper(ctx, om, created)
}

func (om *ObjectMapper) parseArrayValue(ctx *ParseContext, name string) error {
	for {
		tok, err := ctx.parser.Next()
		if err != nil {
			return err
		}
		switch tok {
		case xcontent.TokenEndArray:
			return nil
		case xcontent.TokenStartObject:
			if err := om.parseObjectValue(ctx, name); err != nil {
				return err
			}
		case xcontent.TokenStartArray:
			if err := om.parseArrayValue(ctx, name); err != nil {
				return err
			}
		case xcontent.TokenNull:
			// skip
		default:
			if err := om.parseScalarValue(ctx, name, ctx.parser.Value()); err != nil {
				return err
			}
		}
	}
}

func (om *ObjectMapper) parseScalarValue(ctx *ParseContext, name string, value any) error {
	child := om.Child(name)
	if child != nil {
		fm, ok := child.(*FieldMapper)
		if !ok {
			return fmt.Errorf("tried to parse field [%s] as a concrete value, but it is mapped as an object", ctx.path.PathAsText(name))
		}
		return fm.parse(ctx, value)
	}

	switch om.dynamic {
	case DynamicStrict:
		return fmt.Errorf("mapping set to strict, dynamic introduction of [%s] within [%s] is not allowed", name, om.fullPath)
	case DynamicFalse:
		return nil
	}

	created := NewFieldMapper(name, ctx.path.PathAsText(name), dynamicFieldType(value))
	fm, err := ctx.mapper.addDynamicFieldMapper(ctx, om, created)
	if err != nil {
		return err
	}
	return fm.parse(ctx, value)
}

// toSource emits the serializable form of this subtree, children in lexical
// order.
func (om *ObjectMapper) toSource() map[string]any {
	src := map[string]any{}
	if om.nested.IsNested() {
		src["type"] = "nested"
	}
	if om.dynamic != DynamicTrue {
		src["dynamic"] = string(om.dynamic)
	}
	if !om.enabled {
		src["enabled"] = false
	}
	properties := map[string]any{}
	for _, name := range om.childNames() {
		switch child := om.Child(name).(type) {
		case *FieldMapper:
			properties[name] = child.toSource()
		case *ObjectMapper:
			properties[name] = child.toSource()
		}
	}
	if len(properties) > 0 {
		src["properties"] = properties
	}
	return src
}

// RootObjectMapper is the object node at the top of a schema. Its name is
// the document type, and it carries the document-wide boost field name.
type RootObjectMapper struct {
	ObjectMapper
}

// DefaultBoostField is the root-level key whose numeric value sets the
// document-wide boost.
const DefaultBoostField = "_boost"

// NewRootObjectMapper creates the root node for a document type.
func NewRootObjectMapper(typ string) *RootObjectMapper {
	root := &RootObjectMapper{
		ObjectMapper: ObjectMapper{
			name:     typ,
			fullPath: typ,
			nested:   NestedNone,
			dynamic:  DynamicTrue,
			enabled:  true,
			children: make(map[string]Mapper),
		},
	}
	root.boostField = DefaultBoostField
	return root
}

// SetBoostField overrides the root-level boost key.
func (r *RootObjectMapper) SetBoostField(name string) *RootObjectMapper {
	r.boostField = name
	return r
}

// Package document holds the indexable field and sub-document value types
// produced by the mapping engine. The analyzer and token-filter machinery
// that consumes these lives behind the index boundary and is not part of
// this module.
package document

// FieldType represents the indexable value types supported by the mapping system.
type FieldType string

const (
	FieldTypeText    FieldType = "text"    // Analyzed text
	FieldTypeKeyword FieldType = "keyword" // Exact-match string
	FieldTypeLong    FieldType = "long"    // 64-bit integer
	FieldTypeDouble  FieldType = "double"  // 64-bit float
	FieldTypeBoolean FieldType = "boolean" // True/false
	FieldTypeDate    FieldType = "date"    // Millisecond epoch, parsed from RFC 3339
	FieldTypeBinary  FieldType = "binary"  // Opaque bytes, stored only
)

// IndexOptions controls how much of a field's postings are indexed.
type IndexOptions int

const (
	IndexOptionsNone IndexOptions = iota
	IndexOptionsDocs
	IndexOptionsFreqs
	IndexOptionsPositions
)

// Field is one indexable unit of content. Name is the full dotted path of
// the field from the document root; a field under a sub object is named
// "parent.field".
type Field struct {
	Name      string
	Value     any
	Type      FieldType
	Options   IndexOptions
	Stored    bool
	OmitNorms bool
	Boost     float64
}

// NewField creates an indexed field with default options for its type.
func NewField(name string, value any, typ FieldType) *Field {
	options := IndexOptionsPositions
	omitNorms := false
	switch typ {
	case FieldTypeKeyword, FieldTypeLong, FieldTypeDouble, FieldTypeBoolean, FieldTypeDate:
		options = IndexOptionsDocs
		omitNorms = true
	case FieldTypeBinary:
		options = IndexOptionsNone
		omitNorms = true
	}
	return &Field{
		Name:      name,
		Value:     value,
		Type:      typ,
		Options:   options,
		OmitNorms: omitNorms,
		Boost:     1.0,
	}
}

// Indexed reports whether the field carries any postings at all.
func (f *Field) Indexed() bool {
	return f.Options != IndexOptionsNone
}

package mapping

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/asaidimu/go-docmap/core/document"
)

// Mapper is one node of the schema tree: either a leaf FieldMapper or a
// child ObjectMapper.
type Mapper interface {
	Name() string
}

// FieldMapper maps one scalar value into an indexable field.
type FieldMapper struct {
	name      string
	fullPath  string
	typ       document.FieldType
	options   document.IndexOptions
	stored    bool
	omitNorms bool
	boost     float64
}

// NewFieldMapper creates a field mapper with the default index options for
// its type. fullPath is the dotted path of the field from the document root.
func NewFieldMapper(name, fullPath string, typ document.FieldType) *FieldMapper {
	prototype := document.NewField(fullPath, nil, typ)
	return &FieldMapper{
		name:      name,
		fullPath:  fullPath,
		typ:       typ,
		options:   prototype.Options,
		stored:    prototype.Stored,
		omitNorms: prototype.OmitNorms,
		boost:     1.0,
	}
}

func (f *FieldMapper) Name() string { return f.name }

// FullPath returns the dotted path of the field from the document root.
func (f *FieldMapper) FullPath() string { return f.fullPath }

func (f *FieldMapper) Type() document.FieldType { return f.typ }

func (f *FieldMapper) Boost() float64 { return f.boost }

// SetStored marks values of this field as stored alongside the index.
func (f *FieldMapper) SetStored(stored bool) *FieldMapper {
	f.stored = stored
	return f
}

// SetBoost sets the index-time boost applied to values of this field.
func (f *FieldMapper) SetBoost(boost float64) *FieldMapper {
	f.boost = boost
	return f
}

// SetIndexOptions overrides the index options for this field.
func (f *FieldMapper) SetIndexOptions(options document.IndexOptions) *FieldMapper {
	f.options = options
	return f
}

// parse converts one scalar value and commits the resulting field to the
// current sub-document, subject to the context's veto listener.
func (f *FieldMapper) parse(ctx *ParseContext, value any) error {
	converted, err := f.convert(value)
	if err != nil {
		return fmt.Errorf("failed to parse field [%s]: %w", f.fullPath, err)
	}
	field := &document.Field{
		Name:      f.fullPath,
		Value:     converted,
		Type:      f.typ,
		Options:   f.options,
		Stored:    f.stored,
		OmitNorms: f.omitNorms,
		Boost:     f.boost,
	}
	ctx.addField(f, field)
	return nil
}

func (f *FieldMapper) convert(value any) (any, error) {
	switch f.typ {
	case document.FieldTypeText, document.FieldTypeKeyword:
		switch v := value.(type) {
		case string:
			return v, nil
		case json.Number:
			return v.String(), nil
		case bool:
			return strconv.FormatBool(v), nil
		}
	case document.FieldTypeLong:
		switch v := value.(type) {
		case json.Number:
			return v.Int64()
		case string:
			return strconv.ParseInt(v, 10, 64)
		}
	case document.FieldTypeDouble:
		switch v := value.(type) {
		case json.Number:
			return v.Float64()
		case string:
			return strconv.ParseFloat(v, 64)
		}
	case document.FieldTypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		}
	case document.FieldTypeDate:
		switch v := value.(type) {
		case string:
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, err
			}
			return t.UnixMilli(), nil
		case json.Number:
			return v.Int64()
		}
	case document.FieldTypeBinary:
		if v, ok := value.(string); ok {
			return base64.StdEncoding.DecodeString(v)
		}
	}
	return nil, fmt.Errorf("value %v (%T) is not valid for type [%s]", value, value, f.typ)
}

// merge reconciles this mapper with a candidate of the same path. A type
// change is a conflict; attribute updates apply when not simulating.
func (f *FieldMapper) merge(other *FieldMapper, mc *MergeContext) {
	if f.typ != other.typ {
		mc.addConflict(fmt.Sprintf("mapper [%s] of different type, current_type [%s], merged_type [%s]",
			f.fullPath, f.typ, other.typ))
		return
	}
	if mc.flags.Simulate {
		return
	}
	f.boost = other.boost
	f.stored = other.stored
	f.options = other.options
	f.omitNorms = other.omitNorms
}

// toSource emits the serializable form of this field mapper.
func (f *FieldMapper) toSource() map[string]any {
	src := map[string]any{"type": string(f.typ)}
	if f.boost != 1.0 {
		src["boost"] = f.boost
	}
	if f.stored {
		src["store"] = true
	}
	if f.options == document.IndexOptionsNone {
		src["index"] = false
	}
	return src
}

// dynamicFieldType infers a mapping type from a dynamically discovered
// scalar value.
func dynamicFieldType(value any) document.FieldType {
	switch v := value.(type) {
	case string:
		return document.FieldTypeText
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return document.FieldTypeLong
		}
		return document.FieldTypeDouble
	case bool:
		return document.FieldTypeBoolean
	}
	return document.FieldTypeText
}

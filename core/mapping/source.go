package mapping

import (
	"github.com/asaidimu/go-docmap/core/xcontent"
	"github.com/golang/snappy"
)

// CompressedMapping is the serialized mapping source, snappy-compressed.
type CompressedMapping []byte

// Uncompress returns the raw JSON mapping source.
func (c CompressedMapping) Uncompress() ([]byte, error) {
	return snappy.Decode(nil, c)
}

func compressMapping(data []byte) CompressedMapping {
	return snappy.Encode(nil, data)
}

// ToSource emits the full serializable mapping, keyed by document type:
// the object tree, root handler settings, transforms and meta.
func (m *DocumentMapper) ToSource() map[string]any {
	tree := m.root.toSource()

	// In-object handler fields live in the root tree but serialize as
	// top-level handler entries, not properties.
	if properties, ok := tree["properties"].(map[string]any); ok {
		for _, h := range m.handlers {
			delete(properties, h.Name())
		}
		if len(properties) == 0 {
			delete(tree, "properties")
		}
	}

	for _, kind := range HandlerOrder {
		if src := m.handlers[kind].toSource(); src != nil {
			tree[string(kind)] = src
		}
	}

	if m.root.boostField != DefaultBoostField {
		tree["_boost"] = map[string]any{"name": m.root.boostField}
	}

	switch len(m.transforms) {
	case 0:
	case 1:
		tree["transform"] = m.transforms[0].toSource()
	default:
		serialized := make([]any, len(m.transforms))
		for i, t := range m.transforms {
			serialized[i] = t.toSource()
		}
		tree["transform"] = serialized
	}

	if meta := m.Meta(); len(meta) > 0 {
		tree["_meta"] = meta
	}

	return map[string]any{m.typ: tree}
}

// RefreshSource regenerates and stores the compressed mapping source from
// the current schema state.
func (m *DocumentMapper) RefreshSource() error {
	data, err := xcontent.MapToBytes(m.ToSource())
	if err != nil {
		return &GenerationError{Type: m.typ, Cause: err}
	}
	compressed := compressMapping(data)
	m.mappingSource.Store(&compressed)
	return nil
}

// MappingSource returns the current compressed mapping source.
func (m *DocumentMapper) MappingSource() CompressedMapping {
	if src := m.mappingSource.Load(); src != nil {
		return *src
	}
	return nil
}

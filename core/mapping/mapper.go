package mapping

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/asaidimu/go-docmap/core/script"
	"go.uber.org/zap"
)

// DocumentMapper is the mapping engine for one document type: the schema
// tree, the root handlers, the transform chain and the registries. Parsing
// is safe for concurrent use; merges are serialized internally.
type DocumentMapper struct {
	typ    string
	logger *zap.Logger

	root       *RootObjectMapper
	handlers   map[HandlerKind]RootHandler
	transforms []SourceTransform
	meta       atomic.Pointer[map[string]any]

	fieldMappers  atomic.Pointer[DocumentFieldMappers]
	objectMappers atomic.Pointer[objectMappers]
	mappersMu     sync.Mutex

	listenersMu     sync.RWMutex
	fieldListeners  []FieldMapperListener
	objectListeners []ObjectMapperListener

	mappingSource atomic.Pointer[CompressedMapping]
	mergeMu       sync.Mutex

	contextPool sync.Pool
	closed      atomic.Bool
	bus         *mappingEventBus
}

// Type returns the document type this mapper serves.
func (m *DocumentMapper) Type() string { return m.typ }

// Meta returns the opaque metadata carried by the mapping. Merges replace
// the whole map, so the returned snapshot is safe to read concurrently.
func (m *DocumentMapper) Meta() map[string]any {
	if meta := m.meta.Load(); meta != nil {
		return *meta
	}
	return nil
}

// Root returns the root of the schema tree.
func (m *DocumentMapper) Root() *RootObjectMapper { return m.root }

// Handler returns the root handler of the given kind.
func (m *DocumentMapper) Handler(kind HandlerKind) RootHandler { return m.handlers[kind] }

// Transforms returns the configured source transform chain.
func (m *DocumentMapper) Transforms() []SourceTransform { return m.transforms }

// Close marks the mapper closed. Further parses fail; accessors keep
// working so callers can still inspect the final schema.
func (m *DocumentMapper) Close() {
	m.closed.Store(true)
}

// Builder assembles a DocumentMapper. The zero toggles match the engine
// defaults: source, all and field_names enabled, size, index and timestamp
// disabled, no parent type, routing optional.
type Builder struct {
	typ        string
	index      string
	root       *RootObjectMapper
	meta       map[string]any
	transforms []SourceTransform
	logger     *zap.Logger
	overrides  map[HandlerKind]RootHandler

	parentType       string
	routingRequired  bool
	sizeEnabled      bool
	indexEnabled     bool
	timestampEnabled bool
	ttlEnabled       bool
	allDisabled      bool
	sourceDisabled   bool
}

// NewBuilder starts a mapper for the given document type. A nil root gets a
// fresh dynamic root object.
func NewBuilder(typ string, root *RootObjectMapper) *Builder {
	if root == nil {
		root = NewRootObjectMapper(typ)
	}
	return &Builder{
		typ:       typ,
		root:      root,
		overrides: map[HandlerKind]RootHandler{},
	}
}

// Index sets the index name emitted by the index handler.
func (b *Builder) Index(name string) *Builder {
	b.index = name
	return b
}

// Meta attaches opaque metadata to the mapping.
func (b *Builder) Meta(meta map[string]any) *Builder {
	b.meta = meta
	return b
}

// AddTransform appends a source transform to the chain.
func (b *Builder) AddTransform(t SourceTransform) *Builder {
	b.transforms = append(b.transforms, t)
	return b
}

// AddScriptTransform appends a script-backed source transform.
func (b *Builder) AddScriptTransform(executor script.Executor, source, language string, kind script.Kind, params map[string]any) *Builder {
	return b.AddTransform(NewScriptTransform(executor, source, language, kind, params))
}

// Logger sets the mapper's logger; nil defaults to a no-op logger.
func (b *Builder) Logger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// Handler overrides the handler of the given kind with a custom
// implementation.
func (b *Builder) Handler(h RootHandler) *Builder {
	b.overrides[h.Kind()] = h
	return b
}

// ParentType links documents of this type to a parent type. Setting it
// makes the routing key required.
func (b *Builder) ParentType(typ string) *Builder {
	b.parentType = typ
	return b
}

// RequireRouting makes parses fail when no routing key is provided.
func (b *Builder) RequireRouting() *Builder {
	b.routingRequired = true
	return b
}

// EnableSize turns on the source-size field.
func (b *Builder) EnableSize() *Builder {
	b.sizeEnabled = true
	return b
}

// EnableIndexField turns on indexing of the owning index name.
func (b *Builder) EnableIndexField() *Builder {
	b.indexEnabled = true
	return b
}

// EnableTimestamp turns on the indexing timestamp field.
func (b *Builder) EnableTimestamp() *Builder {
	b.timestampEnabled = true
	return b
}

// EnableTTL turns on the time-to-live field.
func (b *Builder) EnableTTL() *Builder {
	b.ttlEnabled = true
	return b
}

// DisableAll turns off the catch-all aggregation field.
func (b *Builder) DisableAll() *Builder {
	b.allDisabled = true
	return b
}

// DisableSource turns off storage of the raw document bytes.
func (b *Builder) DisableSource() *Builder {
	b.sourceDisabled = true
	return b
}

// Build assembles the mapper: handlers installed in canonical order,
// parent-to-routing requiredness wired, in-object handlers folded into the
// root tree, registries built from the tree, serialized source refreshed.
func (b *Builder) Build() (*DocumentMapper, error) {
	if b.typ == "" {
		return nil, fmt.Errorf("document type is required")
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handlers := map[HandlerKind]RootHandler{
		HandlerUID:        newUIDHandler(),
		HandlerID:         newIDHandler(),
		HandlerRouting:    newRoutingHandler(),
		HandlerSize:       newSizeHandler(),
		HandlerIndex:      newIndexHandler(b.index),
		HandlerSource:     newSourceHandler(),
		HandlerType:       newTypeHandler(),
		HandlerAll:        newAllHandler(),
		HandlerTimestamp:  newTimestampHandler(),
		HandlerTTL:        newTTLHandler(),
		HandlerVersion:    newVersionHandler(),
		HandlerParent:     newParentHandler(b.parentType),
		HandlerFieldNames: newFieldNamesHandler(),
	}
	if b.sizeEnabled {
		handlers[HandlerSize].(*sizeHandler).enabled = true
	}
	if b.indexEnabled {
		handlers[HandlerIndex].(*indexHandler).enabled = true
	}
	if b.timestampEnabled {
		handlers[HandlerTimestamp].(*timestampHandler).enabled = true
	}
	if b.ttlEnabled {
		handlers[HandlerTTL].(*ttlHandler).enabled = true
	}
	if b.allDisabled {
		handlers[HandlerAll].(*allHandler).enabled = false
	}
	if b.sourceDisabled {
		handlers[HandlerSource].(*sourceHandler).enabled = false
	}
	for kind, h := range b.overrides {
		handlers[kind] = h
	}

	if b.routingRequired || b.parentType != "" {
		handlers[HandlerRouting].MarkRequired()
	}

	for _, kind := range HandlerOrder {
		h := handlers[kind]
		if h.IncludeInObject() {
			b.root.putIfAbsent(h.FieldMapper())
		}
	}

	bus, err := newMappingEventBus()
	if err != nil {
		return nil, fmt.Errorf("failed to create mapping event bus: %w", err)
	}

	m := &DocumentMapper{
		typ:        b.typ,
		logger:     logger,
		root:       b.root,
		handlers:   handlers,
		transforms: b.transforms,
		bus:        bus,
	}
	m.meta.Store(&b.meta)
	m.contextPool.New = func() any { return newParseContext(m) }

	var fields []*FieldMapper
	for _, kind := range HandlerOrder {
		h := handlers[kind]
		if !h.IncludeInObject() {
			fields = append(fields, h.FieldMapper())
		}
	}
	b.root.traverseFields(func(fm *FieldMapper) {
		fields = append(fields, fm)
	})
	m.fieldMappers.Store(newDocumentFieldMappers(fields))

	byPath := map[string]*ObjectMapper{}
	b.root.traverseObjects(func(om *ObjectMapper) {
		byPath[om.fullPath] = om
	})
	m.objectMappers.Store(newObjectMappers(byPath))

	if err := m.RefreshSource(); err != nil {
		return nil, err
	}
	return m, nil
}

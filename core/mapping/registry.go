package mapping

import (
	"fmt"
	"sort"
	"strings"

	corebitset "github.com/asaidimu/go-docmap/core/bitset"
	"go.uber.org/zap"
)

// FieldMapperListener observes field mappers added to the schema.
type FieldMapperListener interface {
	FieldMappers(mappers []*FieldMapper)
}

// ObjectMapperListener observes object mappers added to the schema.
type ObjectMapperListener interface {
	ObjectMappers(mappers []*ObjectMapper)
}

// FieldMapperListenerFunc adapts a function to FieldMapperListener.
type FieldMapperListenerFunc func(mappers []*FieldMapper)

func (f FieldMapperListenerFunc) FieldMappers(mappers []*FieldMapper) { f(mappers) }

// ObjectMapperListenerFunc adapts a function to ObjectMapperListener.
type ObjectMapperListenerFunc func(mappers []*ObjectMapper)

func (f ObjectMapperListenerFunc) ObjectMappers(mappers []*ObjectMapper) { f(mappers) }

// DocumentFieldMappers is an immutable snapshot of every field mapper known
// to the schema, in registration order, indexed by full path. Lookups never
// block schema mutation; mutation swaps in a fresh snapshot.
type DocumentFieldMappers struct {
	mappers    []*FieldMapper
	byFullPath map[string]*FieldMapper
}

func newDocumentFieldMappers(mappers []*FieldMapper) *DocumentFieldMappers {
	byFullPath := make(map[string]*FieldMapper, len(mappers))
	for _, fm := range mappers {
		if _, ok := byFullPath[fm.fullPath]; !ok {
			byFullPath[fm.fullPath] = fm
		}
	}
	return &DocumentFieldMappers{mappers: mappers, byFullPath: byFullPath}
}

// Mappers returns the snapshot's mappers in registration order. The caller
// must not mutate the returned slice.
func (d *DocumentFieldMappers) Mappers() []*FieldMapper { return d.mappers }

// ByFullPath returns the mapper registered under the given dotted path, or
// nil.
func (d *DocumentFieldMappers) ByFullPath(path string) *FieldMapper {
	return d.byFullPath[path]
}

// Len returns the number of field mappers in the snapshot.
func (d *DocumentFieldMappers) Len() int { return len(d.mappers) }

func (d *DocumentFieldMappers) with(added []*FieldMapper) *DocumentFieldMappers {
	merged := make([]*FieldMapper, 0, len(d.mappers)+len(added))
	merged = append(merged, d.mappers...)
	merged = append(merged, added...)
	return newDocumentFieldMappers(merged)
}

// objectMappers is an immutable snapshot of the object nodes of the schema,
// keyed by full dotted path, with a precomputed nested aggregate.
type objectMappers struct {
	byPath    map[string]*ObjectMapper
	hasNested bool
}

func newObjectMappers(byPath map[string]*ObjectMapper) *objectMappers {
	hasNested := false
	for _, om := range byPath {
		if om.nested.IsNested() {
			hasNested = true
			break
		}
	}
	return &objectMappers{byPath: byPath, hasNested: hasNested}
}

func (o *objectMappers) with(added []*ObjectMapper) *objectMappers {
	byPath := make(map[string]*ObjectMapper, len(o.byPath)+len(added))
	for path, om := range o.byPath {
		byPath[path] = om
	}
	for _, om := range added {
		byPath[om.fullPath] = om
	}
	return newObjectMappers(byPath)
}

// FieldMappers returns the current field mapper snapshot.
func (m *DocumentMapper) FieldMappers() *DocumentFieldMappers {
	return m.fieldMappers.Load()
}

// ObjectMapperByPath returns the object node registered under the given
// dotted path, or nil.
func (m *DocumentMapper) ObjectMapperByPath(path string) *ObjectMapper {
	return m.objectMappers.Load().byPath[path]
}

// HasNestedObjects reports whether any registered object node is nested.
func (m *DocumentMapper) HasNestedObjects() bool {
	return m.objectMappers.Load().hasNested
}

// AddFieldMapperListener registers a listener for future field mapper
// additions. With includeExisting it first replays the current snapshot.
func (m *DocumentMapper) AddFieldMapperListener(listener FieldMapperListener, includeExisting bool) {
	m.listenersMu.Lock()
	m.fieldListeners = append(m.fieldListeners, listener)
	m.listenersMu.Unlock()
	if includeExisting {
		listener.FieldMappers(m.fieldMappers.Load().mappers)
	}
}

// AddObjectMapperListener registers a listener for future object mapper
// additions. With includeExisting it first replays the current snapshot.
func (m *DocumentMapper) AddObjectMapperListener(listener ObjectMapperListener, includeExisting bool) {
	m.listenersMu.Lock()
	m.objectListeners = append(m.objectListeners, listener)
	m.listenersMu.Unlock()
	if includeExisting {
		listener.ObjectMappers(m.sortedObjectMappers())
	}
}

// TraverseFieldMappers replays every currently registered field mapper into
// the listener, in registration order.
func (m *DocumentMapper) TraverseFieldMappers(listener FieldMapperListener) {
	listener.FieldMappers(m.fieldMappers.Load().mappers)
}

// TraverseObjectMappers replays every currently registered object mapper
// into the listener, in path order.
func (m *DocumentMapper) TraverseObjectMappers(listener ObjectMapperListener) {
	listener.ObjectMappers(m.sortedObjectMappers())
}

func (m *DocumentMapper) sortedObjectMappers() []*ObjectMapper {
	snapshot := m.objectMappers.Load()
	all := make([]*ObjectMapper, 0, len(snapshot.byPath))
	for _, om := range snapshot.byPath {
		all = append(all, om)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].fullPath < all[j].fullPath })
	return all
}

// addFieldMappers publishes new field mappers: snapshot swap, then
// synchronous listener notification with exactly the added mappers.
func (m *DocumentMapper) addFieldMappers(mappers []*FieldMapper, notify bool) {
	if len(mappers) == 0 {
		return
	}
	m.mappersMu.Lock()
	m.fieldMappers.Store(m.fieldMappers.Load().with(mappers))
	m.mappersMu.Unlock()
	if !notify {
		return
	}
	m.listenersMu.RLock()
	listeners := m.fieldListeners
	m.listenersMu.RUnlock()
	for _, l := range listeners {
		l.FieldMappers(mappers)
	}
	paths := make([]string, len(mappers))
	for i, fm := range mappers {
		paths[i] = fm.fullPath
	}
	m.logger.Info("field mappers added", zap.String("type", m.typ), zap.Strings("paths", paths))
	m.emitMappingEvent(EventFieldMappersAdded, paths, nil)
}

// addObjectMappers publishes new object mappers.
func (m *DocumentMapper) addObjectMappers(mappers []*ObjectMapper, notify bool) {
	if len(mappers) == 0 {
		return
	}
	m.mappersMu.Lock()
	m.objectMappers.Store(m.objectMappers.Load().with(mappers))
	m.mappersMu.Unlock()
	if !notify {
		return
	}
	m.listenersMu.RLock()
	listeners := m.objectListeners
	m.listenersMu.RUnlock()
	for _, l := range listeners {
		l.ObjectMappers(mappers)
	}
	paths := make([]string, len(mappers))
	for i, om := range mappers {
		paths[i] = om.fullPath
	}
	m.logger.Info("object mappers added", zap.String("type", m.typ), zap.Strings("paths", paths))
	m.emitMappingEvent(EventObjectMappersAdded, paths, nil)
}

// addDynamicFieldMapper installs a field mapper discovered during a parse.
// Two concurrent parses may race the same key; the loser adopts the winner's
// mapper and registers nothing.
func (m *DocumentMapper) addDynamicFieldMapper(ctx *ParseContext, parent *ObjectMapper, created *FieldMapper) (*FieldMapper, error) {
	inPlace, added := parent.putIfAbsent(created)
	fm, ok := inPlace.(*FieldMapper)
	if !ok {
		return nil, fmt.Errorf("tried to parse field [%s] as a concrete value, but it is mapped as an object", created.fullPath)
	}
	if added {
		ctx.setMappingsModified()
		m.addFieldMappers([]*FieldMapper{fm}, true)
	}
	return fm, nil
}

// addDynamicObjectMapper installs an object mapper discovered during a
// parse, with the same race handling as addDynamicFieldMapper.
func (m *DocumentMapper) addDynamicObjectMapper(ctx *ParseContext, parent *ObjectMapper, created *ObjectMapper) (*ObjectMapper, error) {
	inPlace, added := parent.putIfAbsent(created)
	om, ok := inPlace.(*ObjectMapper)
	if !ok {
		return nil, fmt.Errorf("tried to parse field [%s] as object, but it is mapped as a concrete field", created.fullPath)
	}
	if added {
		ctx.setMappingsModified()
		m.addObjectMappers([]*ObjectMapper{om}, true)
	}
	return om, nil
}

// FindNestedObjectMapper locates the nested object node whose sub-documents
// contain the document at the given batch position, consulting the filter
// cache per candidate. Ties are broken by the longest full path, the most
// specific nesting level.
func (m *DocumentMapper) FindNestedObjectMapper(docID uint, cache corebitset.FilterCache, bctx corebitset.Context) (*ObjectMapper, error) {
	var found *ObjectMapper
	snapshot := m.objectMappers.Load()
	for _, om := range snapshot.byPath {
		if !om.nested.IsNested() {
			continue
		}
		bits, err := cache.BitSet(om.NestedTypeFilter(), bctx)
		if err != nil {
			return nil, err
		}
		if bits == nil || !bits.Test(docID) {
			continue
		}
		if found == nil || len(om.fullPath) > len(found.fullPath) {
			found = om
		}
	}
	return found, nil
}

// FindParentObjectMapper returns the object node enclosing the given one.
// Top-level nodes resolve to the root; the root itself has no parent.
func (m *DocumentMapper) FindParentObjectMapper(om *ObjectMapper) *ObjectMapper {
	idx := strings.LastIndex(om.fullPath, ".")
	if idx < 0 {
		if om == &m.root.ObjectMapper {
			return nil
		}
		return &m.root.ObjectMapper
	}
	return m.ObjectMapperByPath(om.fullPath[:idx])
}

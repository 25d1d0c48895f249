package mapping

import (
	"fmt"

	"go.uber.org/zap"
)

// MergeFlags controls a merge. With Simulate set the merge only validates:
// conflicts are reported and no state changes.
type MergeFlags struct {
	Simulate bool
}

// MergeResult reports the outcome of a merge. Conflicts are data, not
// errors; an empty list means the candidate merged cleanly.
type MergeResult struct {
	Conflicts []string
}

// HasConflicts reports whether the merge found breaking changes.
func (r *MergeResult) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// MergeContext accumulates conflicts and newly adopted mappers while a
// merge walks the schema trees.
type MergeContext struct {
	flags            MergeFlags
	conflicts        []string
	newFieldMappers  []*FieldMapper
	newObjectMappers []*ObjectMapper
}

func (mc *MergeContext) addConflict(conflict string) {
	mc.conflicts = append(mc.conflicts, conflict)
}

// adopt records every mapper of a subtree taken over from the candidate.
func (mc *MergeContext) adopt(m Mapper) {
	switch mapper := m.(type) {
	case *FieldMapper:
		mc.newFieldMappers = append(mc.newFieldMappers, mapper)
	case *ObjectMapper:
		mc.newObjectMappers = append(mc.newObjectMappers, mapper)
		mapper.traverseFields(func(fm *FieldMapper) {
			mc.newFieldMappers = append(mc.newFieldMappers, fm)
		})
		for _, name := range mapper.childNames() {
			if child, ok := mapper.Child(name).(*ObjectMapper); ok {
				child.traverseObjects(func(om *ObjectMapper) {
					mc.newObjectMappers = append(mc.newObjectMappers, om)
				})
			}
		}
	}
}

// merge reconciles this object node with a candidate of the same path.
// Additive changes apply (or validate, when simulating); breaking changes
// are recorded as conflicts and leave the receiver untouched.
func (om *ObjectMapper) merge(other *ObjectMapper, mc *MergeContext) {
	if om.nested != other.nested && (om.nested.IsNested() || other.nested.IsNested()) {
		if om.nested.IsNested() {
			mc.addConflict(fmt.Sprintf("object mapping [%s] can't be changed from nested to non-nested", om.fullPath))
		} else {
			mc.addConflict(fmt.Sprintf("object mapping [%s] can't be changed from non-nested to nested", om.fullPath))
		}
		return
	}

	if !mc.flags.Simulate {
		om.dynamic = other.dynamic
	}

	for _, name := range other.childNames() {
		theirs := other.Child(name)
		mine := om.Child(name)
		if mine == nil {
			if !mc.flags.Simulate {
				om.Put(theirs)
				mc.adopt(theirs)
			}
			continue
		}

		switch current := mine.(type) {
		case *FieldMapper:
			if candidate, ok := theirs.(*FieldMapper); ok {
				current.merge(candidate, mc)
			} else {
				mc.addConflict(fmt.Sprintf("mapper [%s] of different type, current_type [%s], merged_type [object]",
					current.fullPath, current.typ))
			}
		case *ObjectMapper:
			if candidate, ok := theirs.(*ObjectMapper); ok {
				current.merge(candidate, mc)
			} else {
				mc.addConflict(fmt.Sprintf("mapper [%s] of different type, current_type [object], merged_type [%s]",
					current.fullPath, theirs.(*FieldMapper).typ))
			}
		}
	}
}

// Merge reconciles this mapper's schema with a candidate mapper of the same
// type: recursive object tree merge, then standalone handler merge by kind.
// Conflicts are returned as data. Without Simulate, additive changes are
// applied, the meta replaced, the serialized source regenerated, and a
// merged event emitted; a failed source regeneration after mutation returns
// GenerationError and leaves the mapping source stale.
func (m *DocumentMapper) Merge(other *DocumentMapper, flags MergeFlags) (*MergeResult, error) {
	m.mergeMu.Lock()
	defer m.mergeMu.Unlock()

	mc := &MergeContext{flags: flags}
	m.root.ObjectMapper.merge(&other.root.ObjectMapper, mc)

	for _, kind := range HandlerOrder {
		h := m.handlers[kind]
		if h.IncludeInObject() {
			continue
		}
		if candidate := other.handlers[kind]; candidate != nil {
			h.Merge(candidate, mc)
		}
	}

	result := &MergeResult{Conflicts: mc.conflicts}
	if flags.Simulate {
		return result, nil
	}

	m.addFieldMappers(mc.newFieldMappers, true)
	m.addObjectMappers(mc.newObjectMappers, true)
	// The candidate's metadata replaces the receiver's wholesale, even when
	// the candidate carries none.
	candidateMeta := other.Meta()
	m.meta.Store(&candidateMeta)

	if result.HasConflicts() {
		m.logger.Warn("merged mapping with conflicts",
			zap.String("type", m.typ), zap.Strings("conflicts", result.Conflicts))
	} else {
		m.logger.Info("merged mapping", zap.String("type", m.typ))
	}

	if err := m.RefreshSource(); err != nil {
		m.logger.Error("failed to refresh mapping source after merge",
			zap.String("type", m.typ), zap.Error(err))
		return result, err
	}

	m.emitMappingEvent(EventSchemaMerged, nil, result.Conflicts)
	return result, nil
}

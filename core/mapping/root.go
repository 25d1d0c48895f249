package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/asaidimu/go-docmap/core/document"
	"github.com/google/uuid"
)

// Field names of the special document-wide fields.
const (
	uidFieldName        = "_uid"
	idFieldName         = "_id"
	routingFieldName    = "_routing"
	sizeFieldName       = "_size"
	indexFieldName      = "_index"
	sourceFieldName     = "_source"
	typeFieldName       = "_type"
	allFieldName        = "_all"
	timestampFieldName  = "_timestamp"
	ttlFieldName        = "_ttl"
	versionFieldName    = "_version"
	parentFieldName     = "_parent"
	fieldNamesFieldName = "_field_names"
)

// HandlerKind identifies one of the closed set of root field handlers.
type HandlerKind string

const (
	HandlerUID        HandlerKind = uidFieldName
	HandlerID         HandlerKind = idFieldName
	HandlerRouting    HandlerKind = routingFieldName
	HandlerSize       HandlerKind = sizeFieldName
	HandlerIndex      HandlerKind = indexFieldName
	HandlerSource     HandlerKind = sourceFieldName
	HandlerType       HandlerKind = typeFieldName
	HandlerAll        HandlerKind = allFieldName
	HandlerTimestamp  HandlerKind = timestampFieldName
	HandlerTTL        HandlerKind = ttlFieldName
	HandlerVersion    HandlerKind = versionFieldName
	HandlerParent     HandlerKind = parentFieldName
	HandlerFieldNames HandlerKind = fieldNamesFieldName
)

// HandlerOrder is the canonical install and dispatch order of root
// handlers. The uid handler comes first so its stored field is the first
// one loaded; the field-names handler comes last so it observes every other
// field. Pre and post hooks both run in this order.
var HandlerOrder = []HandlerKind{
	HandlerUID,
	HandlerID,
	HandlerRouting,
	HandlerSize,
	HandlerIndex,
	HandlerSource,
	HandlerType,
	HandlerAll,
	HandlerTimestamp,
	HandlerTTL,
	HandlerVersion,
	HandlerParent,
	HandlerFieldNames,
}

// RootHandler is a schema participant operating at the whole-document
// level. Handlers with IncludeInObject true are folded into the root object
// tree at build time; the rest run standalone, exactly once per document.
type RootHandler interface {
	Kind() HandlerKind
	Name() string
	IncludeInObject() bool
	Enabled() bool
	Required() bool
	MarkRequired()
	// FieldMapper returns the mapper describing the handler's field.
	FieldMapper() *FieldMapper
	PreParse(ctx *ParseContext) error
	PostParse(ctx *ParseContext) error
	Merge(other RootHandler, mc *MergeContext)
	// toSource emits the handler's non-default settings, nil when the
	// handler is fully default and should be omitted from the mapping source.
	toSource() map[string]any
}

// baseHandler carries the state shared by every handler variant.
type baseHandler struct {
	kind            HandlerKind
	includeInObject bool
	enabled         bool
	required        bool
	fm              *FieldMapper
}

func (h *baseHandler) Kind() HandlerKind         { return h.kind }
func (h *baseHandler) Name() string              { return string(h.kind) }
func (h *baseHandler) IncludeInObject() bool     { return h.includeInObject }
func (h *baseHandler) Enabled() bool             { return h.enabled }
func (h *baseHandler) Required() bool            { return h.required }
func (h *baseHandler) MarkRequired()             { h.required = true }
func (h *baseHandler) FieldMapper() *FieldMapper { return h.fm }

func (h *baseHandler) PreParse(ctx *ParseContext) error  { return nil }
func (h *baseHandler) PostParse(ctx *ParseContext) error { return nil }

func (h *baseHandler) Merge(other RootHandler, mc *MergeContext) {}

func (h *baseHandler) toSource() map[string]any { return nil }

// uidHandler composes the unique "type#id" identity of the document. It
// runs first so the stored uid is the first field loaded from the index.
type uidHandler struct {
	baseHandler
}

func newUIDHandler() *uidHandler {
	fm := NewFieldMapper(uidFieldName, uidFieldName, document.FieldTypeKeyword).SetStored(true)
	return &uidHandler{baseHandler{kind: HandlerUID, enabled: true, fm: fm}}
}

// PostParse runs after the id handler assigned the document id. Every
// produced sub-document carries the uid so nested children can be grouped
// with their parent; only the top-level copy is stored.
func (h *uidHandler) PostParse(ctx *ParseContext) error {
	ctx.uid = ctx.mapper.typ + "#" + ctx.id
	for _, doc := range ctx.docs {
		field := document.NewField(uidFieldName, ctx.uid, document.FieldTypeKeyword)
		field.Stored = doc == ctx.RootDoc()
		if ctx.listener != nil && !ctx.listener.BeforeFieldAdded(h.fm, field, ctx) {
			continue
		}
		doc.Add(field)
	}
	return nil
}

// idHandler assigns the logical document id, generating one when the parse
// request carries none.
type idHandler struct {
	baseHandler
}

func newIDHandler() *idHandler {
	fm := NewFieldMapper(idFieldName, idFieldName, document.FieldTypeKeyword).SetStored(true)
	return &idHandler{baseHandler{kind: HandlerID, enabled: true, fm: fm}}
}

func (h *idHandler) PreParse(ctx *ParseContext) error {
	id := ctx.source.ID
	if id == "" {
		id = uuid.New().String()
	}
	ctx.id = id
	return h.fm.parse(ctx, id)
}

// routingHandler indexes the routing key. When required, a parse without a
// routing key fails before any field of the document body is mapped.
type routingHandler struct {
	baseHandler
}

func newRoutingHandler() *routingHandler {
	fm := NewFieldMapper(routingFieldName, routingFieldName, document.FieldTypeKeyword).SetStored(true)
	return &routingHandler{baseHandler{kind: HandlerRouting, enabled: true, fm: fm}}
}

func (h *routingHandler) PreParse(ctx *ParseContext) error {
	if h.required && ctx.routing == "" {
		return fmt.Errorf("routing is required for [%s]/[%s]", ctx.mapper.typ, ctx.id)
	}
	if ctx.routing == "" {
		return nil
	}
	return h.fm.parse(ctx, ctx.routing)
}

func (h *routingHandler) Merge(other RootHandler, mc *MergeContext) {
	if mc.flags.Simulate {
		return
	}
	if other.Required() {
		h.MarkRequired()
	}
}

func (h *routingHandler) toSource() map[string]any {
	if !h.required {
		return nil
	}
	return map[string]any{"required": true}
}

// sizeHandler records the byte size of the raw source. Folded into the
// object tree; disabled by default.
type sizeHandler struct {
	baseHandler
}

func newSizeHandler() *sizeHandler {
	fm := NewFieldMapper(sizeFieldName, sizeFieldName, document.FieldTypeLong)
	return &sizeHandler{baseHandler{kind: HandlerSize, includeInObject: true, fm: fm}}
}

func (h *sizeHandler) PostParse(ctx *ParseContext) error {
	if !h.enabled {
		return nil
	}
	return h.fm.parse(ctx, fmt.Sprintf("%d", len(ctx.source.Source)))
}

func (h *sizeHandler) toSource() map[string]any {
	if !h.enabled {
		return nil
	}
	return map[string]any{"enabled": true}
}

// indexHandler indexes the owning index name; disabled by default.
type indexHandler struct {
	baseHandler
	index string
}

func newIndexHandler(index string) *indexHandler {
	fm := NewFieldMapper(indexFieldName, indexFieldName, document.FieldTypeKeyword)
	return &indexHandler{baseHandler: baseHandler{kind: HandlerIndex, fm: fm}, index: index}
}

func (h *indexHandler) PreParse(ctx *ParseContext) error {
	if !h.enabled {
		return nil
	}
	return h.fm.parse(ctx, h.index)
}

func (h *indexHandler) Merge(other RootHandler, mc *MergeContext) {
	if o, ok := other.(*indexHandler); ok && !mc.flags.Simulate {
		h.enabled = o.enabled
	}
}

func (h *indexHandler) toSource() map[string]any {
	if !h.enabled {
		return nil
	}
	return map[string]any{"enabled": true}
}

// sourceHandler stores the raw document bytes; enabled by default.
type sourceHandler struct {
	baseHandler
}

func newSourceHandler() *sourceHandler {
	fm := NewFieldMapper(sourceFieldName, sourceFieldName, document.FieldTypeBinary).SetStored(true)
	return &sourceHandler{baseHandler{kind: HandlerSource, enabled: true, fm: fm}}
}

func (h *sourceHandler) PostParse(ctx *ParseContext) error {
	if !h.enabled || ctx.source.Source == nil {
		return nil
	}
	field := &document.Field{
		Name:   sourceFieldName,
		Value:  ctx.source.Source,
		Type:   document.FieldTypeBinary,
		Stored: true,
		Boost:  1.0,
	}
	ctx.addField(h.fm, field)
	return nil
}

func (h *sourceHandler) Merge(other RootHandler, mc *MergeContext) {
	if o, ok := other.(*sourceHandler); ok && o.enabled != h.enabled {
		mc.addConflict(fmt.Sprintf("mapper [%s] enabled is [%t] now [%t]", sourceFieldName, h.enabled, o.enabled))
	}
}

func (h *sourceHandler) toSource() map[string]any {
	if h.enabled {
		return nil
	}
	return map[string]any{"enabled": false}
}

// typeHandler indexes the document type.
type typeHandler struct {
	baseHandler
}

func newTypeHandler() *typeHandler {
	fm := NewFieldMapper(typeFieldName, typeFieldName, document.FieldTypeKeyword)
	return &typeHandler{baseHandler{kind: HandlerType, enabled: true, fm: fm}}
}

func (h *typeHandler) PreParse(ctx *ParseContext) error {
	return h.fm.parse(ctx, ctx.mapper.typ)
}

// allHandler aggregates every text field of the document into one
// catch-all field; folded into the object tree, enabled by default.
type allHandler struct {
	baseHandler
}

func newAllHandler() *allHandler {
	fm := NewFieldMapper(allFieldName, allFieldName, document.FieldTypeText)
	return &allHandler{baseHandler{kind: HandlerAll, includeInObject: true, enabled: true, fm: fm}}
}

func (h *allHandler) PostParse(ctx *ParseContext) error {
	if !h.enabled {
		return nil
	}
	var sb strings.Builder
	for _, doc := range ctx.docs {
		for _, f := range doc.Fields() {
			if f.Type != document.FieldTypeText || strings.HasPrefix(f.Name, "_") {
				continue
			}
			if value, ok := f.Value.(string); ok {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(value)
			}
		}
	}
	if sb.Len() == 0 {
		return nil
	}
	return h.fm.parse(ctx, sb.String())
}

func (h *allHandler) toSource() map[string]any {
	if h.enabled {
		return nil
	}
	return map[string]any{"enabled": false}
}

// timestampHandler records the indexing timestamp; folded into the object
// tree, disabled by default. A zero request timestamp defaults to now.
type timestampHandler struct {
	baseHandler
	now func() time.Time
}

func newTimestampHandler() *timestampHandler {
	fm := NewFieldMapper(timestampFieldName, timestampFieldName, document.FieldTypeDate)
	return &timestampHandler{
		baseHandler: baseHandler{kind: HandlerTimestamp, includeInObject: true, fm: fm},
		now:         time.Now,
	}
}

func (h *timestampHandler) PostParse(ctx *ParseContext) error {
	if !h.enabled {
		return nil
	}
	if ctx.timestamp == 0 {
		ctx.timestamp = h.now().UnixMilli()
	}
	field := document.NewField(timestampFieldName, ctx.timestamp, document.FieldTypeDate)
	ctx.addField(h.fm, field)
	return nil
}

func (h *timestampHandler) toSource() map[string]any {
	if !h.enabled {
		return nil
	}
	return map[string]any{"enabled": true}
}

// ttlHandler records the document's time-to-live; folded into the object
// tree, disabled by default.
type ttlHandler struct {
	baseHandler
}

func newTTLHandler() *ttlHandler {
	fm := NewFieldMapper(ttlFieldName, ttlFieldName, document.FieldTypeLong)
	return &ttlHandler{baseHandler{kind: HandlerTTL, includeInObject: true, fm: fm}}
}

func (h *ttlHandler) PostParse(ctx *ParseContext) error {
	if !h.enabled || ctx.source.TTL <= 0 {
		return nil
	}
	field := document.NewField(ttlFieldName, ctx.source.TTL, document.FieldTypeLong)
	ctx.addField(h.fm, field)
	return nil
}

func (h *ttlHandler) toSource() map[string]any {
	if !h.enabled {
		return nil
	}
	return map[string]any{"enabled": true}
}

// versionHandler records the document version.
type versionHandler struct {
	baseHandler
}

func newVersionHandler() *versionHandler {
	fm := NewFieldMapper(versionFieldName, versionFieldName, document.FieldTypeLong)
	return &versionHandler{baseHandler{kind: HandlerVersion, enabled: true, fm: fm}}
}

func (h *versionHandler) PreParse(ctx *ParseContext) error {
	if ctx.version == 0 {
		ctx.version = 1
	}
	field := document.NewField(versionFieldName, ctx.version, document.FieldTypeLong)
	ctx.addField(h.fm, field)
	return nil
}

// parentHandler links documents to a parent of another type. Active only
// when a parent type is configured; activating it forces the routing
// handler to be required.
type parentHandler struct {
	baseHandler
	parentType string
}

func newParentHandler(parentType string) *parentHandler {
	fm := NewFieldMapper(parentFieldName, parentFieldName, document.FieldTypeKeyword)
	return &parentHandler{
		baseHandler: baseHandler{kind: HandlerParent, enabled: true, fm: fm},
		parentType:  parentType,
	}
}

// Active reports whether a parent type is configured.
func (h *parentHandler) Active() bool { return h.parentType != "" }

func (h *parentHandler) PreParse(ctx *ParseContext) error {
	if !h.Active() {
		return nil
	}
	if ctx.source.Parent == "" {
		return fmt.Errorf("no parent id provided, parent is required for type [%s]", ctx.mapper.typ)
	}
	return h.fm.parse(ctx, h.parentType+"#"+ctx.source.Parent)
}

func (h *parentHandler) Merge(other RootHandler, mc *MergeContext) {
	if o, ok := other.(*parentHandler); ok && o.parentType != h.parentType {
		mc.addConflict(fmt.Sprintf("The _parent field's type option can't be changed: [%s]->[%s]", h.parentType, o.parentType))
	}
}

func (h *parentHandler) toSource() map[string]any {
	if !h.Active() {
		return nil
	}
	return map[string]any{"type": h.parentType}
}

// fieldNamesHandler indexes the distinct field names of every produced
// sub-document. It must run last so it observes all other fields.
type fieldNamesHandler struct {
	baseHandler
}

func newFieldNamesHandler() *fieldNamesHandler {
	fm := NewFieldMapper(fieldNamesFieldName, fieldNamesFieldName, document.FieldTypeKeyword)
	return &fieldNamesHandler{baseHandler{kind: HandlerFieldNames, includeInObject: true, enabled: true, fm: fm}}
}

func (h *fieldNamesHandler) PostParse(ctx *ParseContext) error {
	if !h.enabled {
		return nil
	}
	for _, doc := range ctx.docs {
		seen := make(map[string]struct{})
		fields := doc.Fields()
		for _, f := range fields {
			if _, ok := seen[f.Name]; ok {
				continue
			}
			seen[f.Name] = struct{}{}
			name := document.NewField(fieldNamesFieldName, f.Name, document.FieldTypeKeyword)
			if ctx.listener != nil && !ctx.listener.BeforeFieldAdded(h.fm, name, ctx) {
				continue
			}
			doc.Add(name)
		}
	}
	return nil
}

func (h *fieldNamesHandler) toSource() map[string]any {
	if h.enabled {
		return nil
	}
	return map[string]any{"enabled": false}
}

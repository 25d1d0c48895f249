package mapping

import (
	"strings"

	"github.com/asaidimu/go-docmap/core/document"
	"github.com/asaidimu/go-docmap/core/xcontent"
)

// SourceToParse carries one parse request: the raw document plus request
// metadata. When Parser is set, the engine reads from it instead of opening
// the raw bytes, and ownership of the parser stays with the caller.
type SourceToParse struct {
	Source    []byte
	Parser    xcontent.Parser
	Type      string
	ID        string
	Routing   string
	Parent    string
	Timestamp int64
	TTL       int64
	Version   int64
}

// ParseListener is invoked before each field is committed to a document.
// Returning false excludes the field. A nil listener includes everything.
type ParseListener interface {
	BeforeFieldAdded(fm *FieldMapper, field *document.Field, ctx *ParseContext) bool
}

// ParseListenerFunc adapts a function to the ParseListener interface.
type ParseListenerFunc func(fm *FieldMapper, field *document.Field, ctx *ParseContext) bool

func (f ParseListenerFunc) BeforeFieldAdded(fm *FieldMapper, field *document.Field, ctx *ParseContext) bool {
	return f(fm, field, ctx)
}

// ParsedDocument is the immutable result of one parse. Docs holds the
// produced sub-documents with children first and the top-level document
// last. It carries no reference back to the schema.
type ParsedDocument struct {
	UID              string
	ID               string
	Version          int64
	Type             string
	Routing          string
	Timestamp        int64
	TTL              int64
	Docs             []*document.Document
	Source           []byte
	MappingsModified bool
	Parent           string
}

// RootDoc returns the top-level document.
func (p *ParsedDocument) RootDoc() *document.Document {
	return p.Docs[len(p.Docs)-1]
}

// ContentPath builds dotted field paths during the tree walk.
type ContentPath struct {
	parts []string
}

// Add pushes one path segment.
func (c *ContentPath) Add(name string) {
	c.parts = append(c.parts, name)
}

// Remove pops the most recent segment.
func (c *ContentPath) Remove() {
	c.parts = c.parts[:len(c.parts)-1]
}

// PathAsText returns the full dotted path for a name at the current level.
func (c *ContentPath) PathAsText(name string) string {
	if len(c.parts) == 0 {
		return name
	}
	return strings.Join(c.parts, ".") + "." + name
}

func (c *ContentPath) reset() {
	c.parts = c.parts[:0]
}

// ParseContext is the per-invocation scratch state of one parse. A context
// is owned by exactly one goroutine at a time; contexts are pooled by the
// mapper and fully cleared between uses, on success and failure alike.
type ParseContext struct {
	mapper   *DocumentMapper
	parser   xcontent.Parser
	source   *SourceToParse
	listener ParseListener

	path     *ContentPath
	docs     []*document.Document
	doc      *document.Document
	docStack []*document.Document

	id        string
	uid       string
	routing   string
	version   int64
	timestamp int64
	docBoost  float64

	mappingsModified bool
}

func newParseContext(mapper *DocumentMapper) *ParseContext {
	return &ParseContext{mapper: mapper, path: &ContentPath{}}
}

// reset prepares the context for a parse, or clears it when called with nil
// arguments.
func (ctx *ParseContext) reset(parser xcontent.Parser, doc *document.Document, source *SourceToParse, listener ParseListener) {
	ctx.parser = parser
	ctx.source = source
	ctx.listener = listener
	ctx.path.reset()
	ctx.docs = ctx.docs[:0]
	ctx.doc = doc
	ctx.docStack = ctx.docStack[:0]
	if doc != nil {
		ctx.docs = append(ctx.docs, doc)
	}
	ctx.id = ""
	ctx.uid = ""
	ctx.routing = ""
	ctx.version = 0
	ctx.timestamp = 0
	ctx.docBoost = 1.0
	ctx.mappingsModified = false
	if source != nil {
		ctx.routing = source.Routing
		ctx.version = source.Version
		ctx.timestamp = source.Timestamp
	}
}

// Doc returns the sub-document currently being filled.
func (ctx *ParseContext) Doc() *document.Document { return ctx.doc }

// Docs returns the sub-documents produced so far, in discovery order with
// the top-level document first. The parse pipeline reverses this before
// returning.
func (ctx *ParseContext) Docs() []*document.Document { return ctx.docs }

// RootDoc returns the top-level document.
func (ctx *ParseContext) RootDoc() *document.Document { return ctx.docs[0] }

// ID returns the document id accumulated so far.
func (ctx *ParseContext) ID() string { return ctx.id }

// MappingsModified reports whether this parse mutated the live schema.
func (ctx *ParseContext) MappingsModified() bool { return ctx.mappingsModified }

// Source returns the parse request being served.
func (ctx *ParseContext) Source() *SourceToParse { return ctx.source }

func (ctx *ParseContext) setMappingsModified() {
	ctx.mappingsModified = true
}

// addField commits a field to the current sub-document, subject to the veto
// listener.
func (ctx *ParseContext) addField(fm *FieldMapper, field *document.Field) {
	if ctx.listener != nil && !ctx.listener.BeforeFieldAdded(fm, field, ctx) {
		return
	}
	ctx.doc.Add(field)
}

// beginNestedDoc starts a fresh sub-document for content under a nested
// object and marks it with the object's type filter.
func (ctx *ParseContext) beginNestedDoc(om *ObjectMapper) {
	nested := document.NewDocument()
	nested.Add(document.NewField(typeFieldName, om.NestedTypeFilter(), document.FieldTypeKeyword))
	ctx.docs = append(ctx.docs, nested)
	ctx.docStack = append(ctx.docStack, ctx.doc)
	ctx.doc = nested
}

// endNestedDoc restores the enclosing sub-document.
func (ctx *ParseContext) endNestedDoc() {
	ctx.doc = ctx.docStack[len(ctx.docStack)-1]
	ctx.docStack = ctx.docStack[:len(ctx.docStack)-1]
}

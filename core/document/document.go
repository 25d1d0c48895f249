package document

// Document is one produced sub-document: an ordered collection of indexable
// fields. A single input document may yield several of these when nested
// content is present.
type Document struct {
	fields []*Field
}

// NewDocument creates an empty sub-document.
func NewDocument() *Document {
	return &Document{}
}

// Add appends a field to the document, preserving insertion order.
func (d *Document) Add(f *Field) {
	d.fields = append(d.fields, f)
}

// Fields returns the fields in insertion order. The returned slice is the
// document's backing storage and must not be mutated by callers.
func (d *Document) Fields() []*Field {
	return d.fields
}

// Get returns the first field with the given name, or nil.
func (d *Document) Get(name string) *Field {
	for _, f := range d.fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// GetAll returns every field with the given name, in insertion order.
func (d *Document) GetAll(name string) []*Field {
	var out []*Field
	for _, f := range d.fields {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

// Reset clears the document for reuse.
func (d *Document) Reset() {
	d.fields = d.fields[:0]
}

package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewField_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		typ       FieldType
		options   IndexOptions
		omitNorms bool
	}{
		{"text keeps positions and norms", FieldTypeText, IndexOptionsPositions, false},
		{"keyword is docs only", FieldTypeKeyword, IndexOptionsDocs, true},
		{"long is docs only", FieldTypeLong, IndexOptionsDocs, true},
		{"double is docs only", FieldTypeDouble, IndexOptionsDocs, true},
		{"boolean is docs only", FieldTypeBoolean, IndexOptionsDocs, true},
		{"date is docs only", FieldTypeDate, IndexOptionsDocs, true},
		{"binary is not indexed", FieldTypeBinary, IndexOptionsNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewField("f", "v", tt.typ)
			assert.Equal(t, tt.options, f.Options)
			assert.Equal(t, tt.omitNorms, f.OmitNorms)
			assert.Equal(t, 1.0, f.Boost)
			assert.False(t, f.Stored)
		})
	}
}

func TestField_Indexed(t *testing.T) {
	assert.True(t, NewField("f", "v", FieldTypeText).Indexed())
	assert.False(t, NewField("f", []byte("v"), FieldTypeBinary).Indexed())
}

func TestDocument_Ordering(t *testing.T) {
	doc := NewDocument()
	doc.Add(NewField("a", "1", FieldTypeKeyword))
	doc.Add(NewField("b", "2", FieldTypeKeyword))
	doc.Add(NewField("a", "3", FieldTypeKeyword))

	fields := doc.Fields()
	assert.Len(t, fields, 3)
	assert.Equal(t, "a", fields[0].Name)

	first := doc.Get("a")
	assert.Equal(t, "1", first.Value)

	all := doc.GetAll("a")
	assert.Len(t, all, 2)
	assert.Equal(t, "3", all[1].Value)

	assert.Nil(t, doc.Get("missing"))

	doc.Reset()
	assert.Empty(t, doc.Fields())
}

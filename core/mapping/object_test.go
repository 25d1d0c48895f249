package mapping

import (
	"testing"

	"github.com/asaidimu/go-docmap/core/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectMapper_Children(t *testing.T) {
	om := NewObjectMapper("author", "author")
	om.Put(NewFieldMapper("name", "author.name", document.FieldTypeText))
	om.Put(NewFieldMapper("age", "author.age", document.FieldTypeLong))

	assert.Equal(t, []string{"age", "name"}, om.childNames())
	assert.NotNil(t, om.Child("name"))
	assert.Nil(t, om.Child("missing"))
}

func TestObjectMapper_PutIfAbsent(t *testing.T) {
	om := NewObjectMapper("author", "author")
	first := NewFieldMapper("name", "author.name", document.FieldTypeText)
	second := NewFieldMapper("name", "author.name", document.FieldTypeKeyword)

	inPlace, added := om.putIfAbsent(first)
	assert.True(t, added)
	assert.Same(t, first, inPlace)

	inPlace, added = om.putIfAbsent(second)
	assert.False(t, added)
	assert.Same(t, first, inPlace)
}

func TestObjectMapper_NestedTypeFilter(t *testing.T) {
	om := NewObjectMapper("replies", "comments.replies").SetNested(NestedDocument)
	assert.Equal(t, "__comments.replies", om.NestedTypeFilter())
	assert.True(t, om.Nested().IsNested())
	assert.False(t, NestedNone.IsNested())
	assert.False(t, NestedArray.IsNested())
}

func TestObjectMapper_Traversal(t *testing.T) {
	root := NewObjectMapper("root", "root")
	child := NewObjectMapper("child", "root.child")
	child.Put(NewFieldMapper("leaf", "root.child.leaf", document.FieldTypeText))
	root.Put(child)
	root.Put(NewFieldMapper("top", "root.top", document.FieldTypeLong))

	var fields []string
	root.traverseFields(func(fm *FieldMapper) {
		fields = append(fields, fm.FullPath())
	})
	assert.Equal(t, []string{"root.child.leaf", "root.top"}, fields)

	var objects []string
	root.traverseObjects(func(om *ObjectMapper) {
		objects = append(objects, om.FullPath())
	})
	assert.Equal(t, []string{"root", "root.child"}, objects)
}

func TestObjectMapper_DynamicChildInheritsPolicy(t *testing.T) {
	root := NewRootObjectMapper("article")
	root.SetDynamic(DynamicFalse)
	m := buildMapper(t, NewBuilder("article", root))

	res, err := m.Parse(&SourceToParse{Source: []byte(`{"a":{"b":"c"}}`)})
	require.NoError(t, err)
	assert.Nil(t, m.ObjectMapperByPath("a"))
	assert.Nil(t, res.RootDoc().Get("a.b"))
}

func TestObjectMapper_StrictInsideDynamicObject(t *testing.T) {
	root := NewRootObjectMapper("article")
	strict := NewObjectMapper("locked", "locked").SetDynamic(DynamicStrict)
	root.Put(strict)
	m := buildMapper(t, NewBuilder("article", root))

	_, err := m.Parse(&SourceToParse{Source: []byte(`{"locked":{"x":1}}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dynamic introduction of [x] within [locked]")

	res, err := m.Parse(&SourceToParse{Source: []byte(`{"free":"ok"}`)})
	require.NoError(t, err)
	assert.NotNil(t, res.RootDoc().Get("free"))
}

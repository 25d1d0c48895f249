package mapping

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/asaidimu/go-docmap/core/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapperWithFields(t *testing.T, typ string, fields map[string]document.FieldType) *DocumentMapper {
	t.Helper()
	root := NewRootObjectMapper(typ)
	for name, ft := range fields {
		root.Put(NewFieldMapper(name, name, ft))
	}
	return buildMapper(t, NewBuilder(typ, root))
}

func TestMerge_AdditiveFields(t *testing.T) {
	current := mapperWithFields(t, "article", map[string]document.FieldType{
		"title": document.FieldTypeText,
	})
	candidate := mapperWithFields(t, "article", map[string]document.FieldType{
		"title": document.FieldTypeText,
		"views": document.FieldTypeLong,
	})

	var notified []string
	current.AddFieldMapperListener(FieldMapperListenerFunc(func(mappers []*FieldMapper) {
		for _, fm := range mappers {
			notified = append(notified, fm.FullPath())
		}
	}), false)

	result, err := current.Merge(candidate, MergeFlags{})
	require.NoError(t, err)
	assert.False(t, result.HasConflicts())

	added := current.FieldMappers().ByFullPath("views")
	require.NotNil(t, added)
	assert.Equal(t, document.FieldTypeLong, added.Type())
	assert.NotNil(t, current.Root().Child("views"))
	assert.Equal(t, []string{"views"}, notified)
}

func TestMerge_SimulateLeavesStateUntouched(t *testing.T) {
	current := mapperWithFields(t, "article", map[string]document.FieldType{
		"title": document.FieldTypeText,
	})
	candidate := mapperWithFields(t, "article", map[string]document.FieldType{
		"views": document.FieldTypeLong,
	})

	before := current.FieldMappers().Len()
	result, err := current.Merge(candidate, MergeFlags{Simulate: true})
	require.NoError(t, err)
	assert.False(t, result.HasConflicts())
	assert.Equal(t, before, current.FieldMappers().Len())
	assert.Nil(t, current.Root().Child("views"))
}

func TestMerge_TypeConflict(t *testing.T) {
	current := mapperWithFields(t, "article", map[string]document.FieldType{
		"name": document.FieldTypeText,
	})
	candidate := mapperWithFields(t, "article", map[string]document.FieldType{
		"name": document.FieldTypeKeyword,
	})

	result, err := current.Merge(candidate, MergeFlags{Simulate: true})
	require.NoError(t, err)
	require.True(t, result.HasConflicts())
	assert.Contains(t, result.Conflicts,
		"mapper [name] of different type, current_type [text], merged_type [keyword]")

	// The conflicting mapper keeps its type even without simulate.
	result, err = current.Merge(candidate, MergeFlags{})
	require.NoError(t, err)
	assert.True(t, result.HasConflicts())
	assert.Equal(t, document.FieldTypeText, current.FieldMappers().ByFullPath("name").Type())
}

func TestMerge_AttributeUpdatesApply(t *testing.T) {
	current := mapperWithFields(t, "article", map[string]document.FieldType{
		"title": document.FieldTypeText,
	})

	root := NewRootObjectMapper("article")
	root.Put(NewFieldMapper("title", "title", document.FieldTypeText).SetBoost(3.0).SetStored(true))
	candidate := buildMapper(t, NewBuilder("article", root))

	_, err := current.Merge(candidate, MergeFlags{Simulate: true})
	require.NoError(t, err)
	assert.Equal(t, 1.0, current.FieldMappers().ByFullPath("title").Boost())

	result, err := current.Merge(candidate, MergeFlags{})
	require.NoError(t, err)
	assert.False(t, result.HasConflicts())
	assert.Equal(t, 3.0, current.FieldMappers().ByFullPath("title").Boost())
}

func TestMerge_NestedModeConflict(t *testing.T) {
	currentRoot := NewRootObjectMapper("post")
	currentRoot.Put(NewObjectMapper("comments", "comments"))
	current := buildMapper(t, NewBuilder("post", currentRoot))

	candidateRoot := NewRootObjectMapper("post")
	candidateRoot.Put(NewObjectMapper("comments", "comments").SetNested(NestedDocument))
	candidate := buildMapper(t, NewBuilder("post", candidateRoot))

	result, err := current.Merge(candidate, MergeFlags{Simulate: true})
	require.NoError(t, err)
	assert.Contains(t, result.Conflicts,
		"object mapping [comments] can't be changed from non-nested to nested")
}

func TestMerge_ParentTypeConflict(t *testing.T) {
	current := buildMapper(t, NewBuilder("answer", nil).ParentType("question"))
	candidate := buildMapper(t, NewBuilder("answer", nil).ParentType("survey"))

	result, err := current.Merge(candidate, MergeFlags{Simulate: true})
	require.NoError(t, err)
	assert.Contains(t, result.Conflicts,
		"The _parent field's type option can't be changed: [question]->[survey]")
}

func TestMerge_SourceEnabledConflict(t *testing.T) {
	current := buildMapper(t, NewBuilder("article", nil))
	candidate := buildMapper(t, NewBuilder("article", nil).DisableSource())

	result, err := current.Merge(candidate, MergeFlags{Simulate: true})
	require.NoError(t, err)
	assert.Contains(t, result.Conflicts, "mapper [_source] enabled is [true] now [false]")
}

func TestMerge_RoutingRequiredPropagates(t *testing.T) {
	current := buildMapper(t, NewBuilder("article", nil))
	candidate := buildMapper(t, NewBuilder("article", nil).RequireRouting())

	_, err := current.Merge(candidate, MergeFlags{Simulate: true})
	require.NoError(t, err)
	assert.False(t, current.Handler(HandlerRouting).Required())

	_, err = current.Merge(candidate, MergeFlags{})
	require.NoError(t, err)
	assert.True(t, current.Handler(HandlerRouting).Required())
}

func TestMerge_ReplacesMeta(t *testing.T) {
	t.Run("candidate meta replaces the receiver's", func(t *testing.T) {
		current := buildMapper(t, NewBuilder("article", nil).Meta(map[string]any{"rev": 1}))
		candidate := buildMapper(t, NewBuilder("article", nil).Meta(map[string]any{"rev": 2}))

		_, err := current.Merge(candidate, MergeFlags{})
		require.NoError(t, err)
		assert.Equal(t, 2, current.Meta()["rev"])
	})

	t.Run("a candidate without meta clears the receiver's", func(t *testing.T) {
		current := buildMapper(t, NewBuilder("article", nil).Meta(map[string]any{"rev": 1}))
		candidate := buildMapper(t, NewBuilder("article", nil))

		_, err := current.Merge(candidate, MergeFlags{})
		require.NoError(t, err)
		assert.Nil(t, current.Meta())

		raw, err := current.MappingSource().Uncompress()
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "_meta")
	})

	t.Run("simulate keeps the receiver's meta", func(t *testing.T) {
		current := buildMapper(t, NewBuilder("article", nil).Meta(map[string]any{"rev": 1}))
		candidate := buildMapper(t, NewBuilder("article", nil).Meta(map[string]any{"rev": 2}))

		_, err := current.Merge(candidate, MergeFlags{Simulate: true})
		require.NoError(t, err)
		assert.Equal(t, 1, current.Meta()["rev"])
	})
}

func TestMeta_ReadableDuringMerges(t *testing.T) {
	current := buildMapper(t, NewBuilder("article", nil).Meta(map[string]any{"rev": 0}))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			meta := current.Meta()
			if meta != nil {
				_ = meta["rev"]
			}
		}
	}()

	for i := 1; i <= 16; i++ {
		candidate := buildMapper(t, NewBuilder("article", nil).Meta(map[string]any{"rev": i}))
		_, err := current.Merge(candidate, MergeFlags{})
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, 16, current.Meta()["rev"])
}

func TestMerge_Idempotent(t *testing.T) {
	current := mapperWithFields(t, "article", map[string]document.FieldType{
		"title": document.FieldTypeText,
	})
	candidate := mapperWithFields(t, "article", map[string]document.FieldType{
		"title": document.FieldTypeText,
		"views": document.FieldTypeLong,
	})

	_, err := current.Merge(candidate, MergeFlags{})
	require.NoError(t, err)
	countAfterFirst := current.FieldMappers().Len()

	result, err := current.Merge(candidate, MergeFlags{})
	require.NoError(t, err)
	assert.False(t, result.HasConflicts())
	assert.Equal(t, countAfterFirst, current.FieldMappers().Len())
}

func TestMerge_AppliesAdditionsAlongsideConflicts(t *testing.T) {
	current := mapperWithFields(t, "log", map[string]document.FieldType{
		"message": document.FieldTypeText,
		"ts":      document.FieldTypeDate,
	})
	candidate := mapperWithFields(t, "log", map[string]document.FieldType{
		"message": document.FieldTypeText,
		"ts":      document.FieldTypeText,
		"host":    document.FieldTypeKeyword,
	})

	result, err := current.Merge(candidate, MergeFlags{})
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.Contains(t, result.Conflicts[0], "mapper [ts] of different type")

	assert.Equal(t, document.FieldTypeDate, current.FieldMappers().ByFullPath("ts").Type())
	host := current.FieldMappers().ByFullPath("host")
	require.NotNil(t, host)
	assert.Equal(t, document.FieldTypeKeyword, host.Type())
}

func TestMerge_RefreshesMappingSource(t *testing.T) {
	current := mapperWithFields(t, "article", map[string]document.FieldType{
		"title": document.FieldTypeText,
	})
	candidate := mapperWithFields(t, "article", map[string]document.FieldType{
		"views": document.FieldTypeLong,
	})

	_, err := current.Merge(candidate, MergeFlags{})
	require.NoError(t, err)

	raw, err := current.MappingSource().Uncompress()
	require.NoError(t, err)

	var src map[string]any
	require.NoError(t, json.Unmarshal(raw, &src))
	tree := src["article"].(map[string]any)
	properties := tree["properties"].(map[string]any)
	assert.Contains(t, properties, "views")
}

func TestMerge_AdoptsWholeSubtrees(t *testing.T) {
	current := buildMapper(t, NewBuilder("post", nil))

	candidateRoot := NewRootObjectMapper("post")
	author := NewObjectMapper("author", "author")
	author.Put(NewFieldMapper("name", "author.name", document.FieldTypeText))
	candidateRoot.Put(author)
	candidate := buildMapper(t, NewBuilder("post", candidateRoot))

	result, err := current.Merge(candidate, MergeFlags{})
	require.NoError(t, err)
	assert.False(t, result.HasConflicts())
	assert.NotNil(t, current.ObjectMapperByPath("author"))
	assert.NotNil(t, current.FieldMappers().ByFullPath("author.name"))
}

func TestMerge_ConcurrentMergesAreSerialized(t *testing.T) {
	current := buildMapper(t, NewBuilder("article", nil))

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			root := NewRootObjectMapper("article")
			name := fmt.Sprintf("field%d", i)
			root.Put(NewFieldMapper(name, name, document.FieldTypeKeyword))
			candidate, err := NewBuilder("article", root).Build()
			if err != nil {
				done <- err
				return
			}
			_, err = current.Merge(candidate, MergeFlags{})
			done <- err
		}(i)
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}
	for i := 0; i < 8; i++ {
		assert.NotNil(t, current.FieldMappers().ByFullPath(fmt.Sprintf("field%d", i)))
	}
}

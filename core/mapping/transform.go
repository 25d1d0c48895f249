package mapping

import (
	"fmt"

	"github.com/asaidimu/go-docmap/core/script"
)

// SourceTransform rewrites a document source before it is parsed. Transforms
// run in the order they were configured and each receives the previous
// transform's output.
type SourceTransform interface {
	TransformSourceAsMap(source map[string]any) (map[string]any, error)
	// toSource emits the serializable form of the transform.
	toSource() map[string]any
}

// TransformFunc adapts a plain function into a SourceTransform.
type TransformFunc func(source map[string]any) (map[string]any, error)

func (f TransformFunc) TransformSourceAsMap(source map[string]any) (map[string]any, error) {
	return f(source)
}

func (f TransformFunc) toSource() map[string]any {
	return map[string]any{"function": true}
}

// ScriptTransform rewrites the source by running a script. The script sees
// the document under `ctx._source` and may mutate or replace it.
type ScriptTransform struct {
	executor script.Executor
	source   string
	language string
	kind     script.Kind
	params   map[string]any
}

// NewScriptTransform creates a script-backed transform.
func NewScriptTransform(executor script.Executor, source, language string, kind script.Kind, params map[string]any) *ScriptTransform {
	return &ScriptTransform{
		executor: executor,
		source:   source,
		language: language,
		kind:     kind,
		params:   params,
	}
}

func (t *ScriptTransform) TransformSourceAsMap(source map[string]any) (map[string]any, error) {
	binding := map[string]any{"_source": source}
	result, err := t.executor.Execute(t.language, t.source, t.kind, t.params, binding)
	if err != nil {
		return nil, &TransformError{Cause: err}
	}
	transformed, ok := result["_source"].(map[string]any)
	if !ok {
		return nil, &TransformError{Cause: fmt.Errorf("script did not leave [_source] as an object")}
	}
	return transformed, nil
}

func (t *ScriptTransform) toSource() map[string]any {
	src := map[string]any{
		"script": t.source,
		"lang":   t.language,
	}
	if t.kind != script.KindInline {
		src["kind"] = string(t.kind)
	}
	if len(t.params) > 0 {
		src["params"] = t.params
	}
	return src
}

// applyTransforms runs the configured transform chain over a materialized
// source.
func (m *DocumentMapper) applyTransforms(source map[string]any) (map[string]any, error) {
	current := source
	for _, transform := range m.transforms {
		next, err := transform.TransformSourceAsMap(current)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// TransformSourceAsMap applies the mapper's transform chain to an already
// materialized source, without parsing. With no transforms configured the
// input is returned untouched.
func (m *DocumentMapper) TransformSourceAsMap(source map[string]any) (map[string]any, error) {
	return m.applyTransforms(source)
}

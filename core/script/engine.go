package script

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Engine is the built-in JavaScript Executor.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a new script engine. A nil logger defaults to a nop logger.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Execute compiles and runs the script with "ctx" and "params" bound as
// globals, then exports the final value of "ctx" back out.
func (e *Engine) Execute(language, source string, kind Kind, params map[string]any, binding map[string]any) (map[string]any, error) {
	switch language {
	case "", "js", "javascript":
	default:
		return nil, fmt.Errorf("unsupported script language %q", language)
	}

	vm := goja.New()
	if err := vm.Set("params", params); err != nil {
		return nil, fmt.Errorf("failed to bind script params: %w", err)
	}
	if err := vm.Set("ctx", binding); err != nil {
		return nil, fmt.Errorf("failed to bind script context: %w", err)
	}

	if _, err := vm.RunString(source); err != nil {
		e.logger.Warn("script execution failed", zap.String("kind", string(kind)), zap.Error(err))
		return nil, fmt.Errorf("script execution failed: %w", err)
	}

	exported := vm.Get("ctx").Export()
	result, ok := exported.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("script replaced ctx with a non-object value %T", exported)
	}
	return result, nil
}

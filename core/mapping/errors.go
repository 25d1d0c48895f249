package mapping

import "fmt"

// StructuralError reports a structural violation in the input: a document
// that does not start with an object, or a type mismatch between the parse
// request and the mapping. It is fatal to the current parse.
type StructuralError struct {
	Reason           string
	MappingsModified bool
}

func (e *StructuralError) Error() string {
	return e.Reason
}

// EmptyDocumentError reports a raw document body of length zero. It is
// surfaced instead of a ParsingError for clearer diagnostics.
type EmptyDocumentError struct {
	MappingsModified bool
}

func (e *EmptyDocumentError) Error() string {
	return "failed to parse, document is empty"
}

// ParsingError wraps any other failure raised while walking the schema or
// running root handlers, preserving the original cause.
type ParsingError struct {
	Cause            error
	MappingsModified bool
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("failed to parse: %v", e.Cause)
}

func (e *ParsingError) Unwrap() error {
	return e.Cause
}

// TransformError reports a failed source transform, preserving the
// underlying cause.
type TransformError struct {
	Cause error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("failed to transform source: %v", e.Cause)
}

func (e *TransformError) Unwrap() error {
	return e.Cause
}

// GenerationError reports a failure regenerating the serialized mapping
// source. When it occurs after a merge already mutated the receiver, the
// mapping is in an inconsistent state and must be reloaded by the caller.
type GenerationError struct {
	Type  string
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to serialize source for type [%s]: %v", e.Type, e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Package errors defines the error taxonomy shared by the index, persistence and
// registration layers. Every error raised here carries a dotted machine-readable
// code and structured fields, and still unwraps to one of the sentinel values so
// callers can match with errors.Is.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeMediaNotFound           Code = "media.path.not_found"
	CodeMediaUnsupported        Code = "media.format.invalid_input"
	CodeMediaDecodeFailure      Code = "media.decode.failure"
	CodeVideoNoFrames           Code = "media.video.no_frames"
	CodeVideoProbeFailure       Code = "media.video.probe.failure"
	CodeAggregateEmptyInput     Code = "aggregate.reduce.empty_input"
	CodeAggregateDegenerate     Code = "aggregate.reduce.degenerate"
	CodeVectorDimension         Code = "vector.dimension_mismatch"
	CodeLedgerNotFound          Code = "ledger.get.not_found"
	CodeIndexCorrupt            Code = "index.lockstep.corrupt"
	CodePersistenceMissing      Code = "persistence.load.missing"
	CodePersistenceCorrupt      Code = "persistence.load.corrupt"
	CodePersistenceWrite        Code = "persistence.save.failure"
	CodePersistenceLocked       Code = "persistence.lock.conflict"
	CodeEmbeddingFailure        Code = "embedding.inference.failure"
	CodeEmbeddingDegenerate     Code = "embedding.output.degenerate"
	CodeEngineInvalidInput      Code = "engine.request.invalid_input"
	CodeCatalogFailure          Code = "catalog.database.failure"
	CodeServerRequestInvalid    Code = "server.request.invalid"
	CodeServerInternalFailure   Code = "server.internal.failure"
	CodeCLIInputInvalid         Code = "cli.input.invalid"
	CodeConfigValidateInvalid   Code = "config.validate.invalid_value"
	CodeExportFormatUnsupported Code = "export.format.invalid_input"
)

// Sentinel errors. Errors built with New or Wrap unwrap to one of these when a
// sentinel is supplied.
var (
	ErrNotFound          = stderrors.New("not found")
	ErrNoFramesExtracted = stderrors.New("no frames extracted")
	ErrEmptyInput        = stderrors.New("empty input")
	ErrDegenerateVector  = stderrors.New("degenerate vector")
	ErrMissingIndex      = stderrors.New("missing index")
	ErrCorruptIndex      = stderrors.New("corrupt index")
	ErrDimensionMismatch = stderrors.New("dimension mismatch")
	ErrInvalidInput      = stderrors.New("invalid input")
	ErrLocked            = stderrors.New("index location locked")
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldPath(path string) Attr {
	return Field("path", path)
}

func FieldIndex(index int) Attr {
	return Field("index", index)
}

// Dimension builds the pair of fields used by every dimension mismatch.
func Dimension(expected, actual int) []Attr {
	return []Attr{Field("expected_dim", expected), Field("actual_dim", actual)}
}

// New returns an error with code that unwraps to sentinel (which may be nil).
func New(code Code, sentinel error, msg string, fields ...Attr) error {
	b := oops.Code(string(code)).With(flatten(fields)...)
	if sentinel == nil {
		return b.New(msg)
	}
	return b.Wrapf(sentinel, "%s", msg)
}

// Errorf formats a message under code. Use %w to keep an inner error in the chain.
func Errorf(code Code, format string, args ...any) error {
	return oops.Code(string(code)).Errorf(format, args...)
}

// Wrap attaches code, message and fields to err. It returns nil when err is nil.
func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(string(code)).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

// Mark wraps err so it also matches sentinel, keeping err's message as the cause.
func Mark(err error, sentinel error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return Wrap(fmt.Errorf("%w: %w", sentinel, err), code, msg, fields...)
}

// With adds fields to err, keeping its code.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}
	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}
	return oops.Code(string(code)).With(flatten(fields)...).Wrap(err)
}

// CodeOf returns the outermost code in err's chain, or "" when none is set.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch code := oopsErr.Code().(type) {
	case Code:
		return code
	case string:
		return Code(code)
	case nil:
		return ""
	default:
		return Code(fmt.Sprintf("%v", code))
	}
}

// FieldsOf returns the structured fields attached to err.
func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// HTTPStatus maps err to the status code the API responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrInvalidInput),
		stderrors.Is(err, ErrDimensionMismatch),
		stderrors.Is(err, ErrNoFramesExtracted),
		stderrors.Is(err, ErrEmptyInput):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrLocked):
		return http.StatusConflict
	case isInvalid(CodeOf(err)):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isInvalid(code Code) bool {
	r := reason(code)
	return r == "invalid" || r == "invalid_input" || r == "invalid_value"
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}

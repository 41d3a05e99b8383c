package pipeline

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Tutortoise/xray-analysis-service/models"
)

// Kind classifies where a request failed.
type Kind int

const (
	KindInternal Kind = iota
	KindUnknownModel
	KindModelUnavailable
	KindInvalidRequest
	KindDecode
	KindPreprocess
	KindInference
	KindPostprocess
)

func (k Kind) String() string {
	switch k {
	case KindUnknownModel:
		return "unknown_model"
	case KindModelUnavailable:
		return "model_unavailable"
	case KindInvalidRequest:
		return "invalid_request"
	case KindDecode:
		return "decode_failure"
	case KindPreprocess:
		return "preprocess_failure"
	case KindInference:
		return "inference_failure"
	case KindPostprocess:
		return "postprocess_failure"
	default:
		return "internal_error"
	}
}

func (k Kind) StatusCode() int {
	switch k {
	case KindUnknownModel, KindInvalidRequest:
		return http.StatusBadRequest
	case KindModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind      Kind
	ModelType models.ModelType
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewError(kind Kind, modelType models.ModelType, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		ModelType: modelType,
		Message:   message,
		Cause:     cause,
	}
}

// KindOf reports the Kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindInternal
}

func StatusCode(err error) int {
	return KindOf(err).StatusCode()
}

func errUnknownModel(t models.ModelType) *Error {
	return NewError(KindUnknownModel, t,
		fmt.Sprintf("Unknown model type '%s'. Expected one of: %s", t, joinTypes(models.KnownModelTypes)), nil)
}

func errModelUnavailable(t models.ModelType) *Error {
	return NewError(KindModelUnavailable, t,
		fmt.Sprintf("Model type '%s' is not loaded or available.", t), nil)
}

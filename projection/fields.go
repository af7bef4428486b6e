package projection

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/aluiziolira/woo-export/models"
)

var (
	// ErrMissingField is wrapped by FieldError when a required field is absent or null.
	ErrMissingField = errors.New("missing field")
	// ErrWrongType is wrapped by FieldError when a field has an unexpected JSON type.
	ErrWrongType = errors.New("unexpected type")
)

// FieldError reports that one record could not be projected.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func requiredString(rec map[string]any, key string) (string, error) {
	value, ok := rec[key]
	if !ok || value == nil {
		return "", &FieldError{Field: key, Err: ErrMissingField}
	}
	s, ok := scalar(value)
	if !ok {
		return "", &FieldError{Field: key, Err: fmt.Errorf("%w: %T", ErrWrongType, value)}
	}
	return s, nil
}

// firstNested returns rec[list][0][field]. An absent, null or empty list yields "".
func firstNested(rec models.Record, list, field string) (string, error) {
	value, ok := rec[list]
	if !ok || value == nil {
		return "", nil
	}
	items, ok := value.([]any)
	if !ok {
		return "", &FieldError{Field: list, Err: fmt.Errorf("%w: %T", ErrWrongType, value)}
	}
	if len(items) == 0 {
		return "", nil
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return "", &FieldError{Field: list + "[0]", Err: fmt.Errorf("%w: %T", ErrWrongType, items[0])}
	}
	s, err := requiredString(first, field)
	if err != nil {
		return "", &FieldError{Field: list + "[0]." + field, Err: errors.Unwrap(err)}
	}
	return s, nil
}

func nestedObject(rec models.Record, key string) (map[string]any, error) {
	value, ok := rec[key]
	if !ok || value == nil {
		return nil, &FieldError{Field: key, Err: ErrMissingField}
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, &FieldError{Field: key, Err: fmt.Errorf("%w: %T", ErrWrongType, value)}
	}
	return obj, nil
}

func scalar(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

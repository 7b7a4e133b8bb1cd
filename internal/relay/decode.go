package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"psnrelay/internal/tracker"
)

// updateMessage is the only message browsers send. Pointer fields let the
// validator tell a missing coordinate from an explicit zero.
type updateMessage struct {
	ID *int     `json:"id" validate:"required,min=0,max=65535"`
	X  *float64 `json:"x" validate:"required"`
	Y  *float64 `json:"y" validate:"required"`
	Z  *float64 `json:"z" validate:"required"`
}

// TrackerIDRequest is the body of the add and remove tracker routes.
type TrackerIDRequest struct {
	ID *int `json:"id" validate:"required,min=0,max=65535"`
}

// ModeRequest is the body of the mode switch route.
type ModeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

var payloadValidator = validator.New(validator.WithRequiredStructEnabled())

// DecodeUpdate strictly parses a browser update. Unknown fields, missing
// fields, trailing data, and non-finite numbers are all rejected with
// ErrInvalidUpdate.
func DecodeUpdate(data []byte) (tracker.State, error) {
	var msg updateMessage
	if err := DecodeStrict(bytes.NewReader(data), &msg); err != nil {
		return tracker.State{}, err
	}
	st := tracker.State{ID: *msg.ID, X: *msg.X, Y: *msg.Y, Z: *msg.Z}
	if err := ValidateState(st); err != nil {
		return tracker.State{}, err
	}
	return st, nil
}

// DecodeStrict decodes exactly one JSON value from r into dst and runs the
// validator over it.
func DecodeStrict(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidUpdate, describeDecodeError(err))
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidUpdate)
	}
	if err := payloadValidator.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidUpdate, describeValidationError(err))
	}
	return nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("field %q must be %s", typeErr.Field, typeErr.Type)
	}
	if errors.Is(err, io.EOF) {
		return "empty payload"
	}
	return strings.TrimPrefix(err.Error(), "json: ")
}

func describeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field %q is required", field)
	case "min", "max":
		return fmt.Sprintf("field %q must satisfy %s=%s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("field %q failed %s", field, fe.Tag())
	}
}

package pipeline

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"chat-backend/internal/models"
)

// ErrInvalidMessage matches every ValidationError with errors.Is.
var ErrInvalidMessage = errors.New("invalid message")

// InboundEvent is a sendMessage event received on a live connection.
type InboundEvent struct {
	Sender     string `json:"sender" validate:"required"`
	SenderName string `json:"senderName"`
	Receiver   string `json:"receiver" validate:"required"`
	Text       string `json:"text" validate:"required"`
	Room       string `json:"room" validate:"required"`
}

// Post is a message submitted through the REST surface. A group Receiver targets the group channel.
type Post struct {
	Sender     string        `json:"sender" validate:"required"`
	SenderName string        `json:"senderName"`
	Receiver   models.Target `json:"receiver"`
	Text       string        `json:"text" validate:"required"`
}

// ValidationError lists the required fields that were missing or empty.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid message: missing " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidMessage
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func validate(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{Fields: fields}
}

// normalizeSenderName substitutes the placeholder name for a blank one.
func normalizeSenderName(name string) string {
	if strings.TrimSpace(name) == "" {
		return models.UnknownSenderName
	}
	return name
}

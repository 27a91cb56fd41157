package app

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"bookshelf/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// CreateReviewInput and friends carry caller input; validation runs before
// any store access.
type CreateReviewInput struct {
	BookID int64    `json:"bookId" validate:"gt=0"`
	Rating *float64 `json:"rating,omitempty" validate:"omitempty,gte=1,lte=5"`
	Title  *string  `json:"title,omitempty" validate:"omitempty,max=140"`
	Body   *string  `json:"body,omitempty" validate:"omitempty,max=5000"`
}

type UpdateReviewInput struct {
	Rating *float64 `json:"rating,omitempty" validate:"omitempty,gte=1,lte=5"`
	Title  *string  `json:"title,omitempty" validate:"omitempty,max=140"`
	Body   *string  `json:"body,omitempty" validate:"omitempty,max=5000"`
}

func (in UpdateReviewInput) patch() domain.ReviewPatch {
	return domain.ReviewPatch{Rating: in.Rating, Title: in.Title, Body: in.Body}
}

type AddCommentInput struct {
	Body string `json:"body" validate:"required,notblank,max=1000"`
}

// ValidationError lists failing fields. It matches domain.ErrValidation under errors.Is.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", fe.Field(), msgForTag(fe)))
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

// Fields maps field names to messages, for problem responses.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		out[fe.Field()] = msgForTag(fe)
	}
	return out
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "must not be blank"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}

func validateInput(in any) error {
	if err := validate.Struct(in); err != nil {
		if ves, ok := err.(validator.ValidationErrors); ok {
			return &ValidationError{Errors: ves}
		}
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

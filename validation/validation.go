// Package validation holds the field rules a post must satisfy before it is
// submitted.
package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/eringen/pubfront/post"
)

// Field names reported in Errors.
const (
	FieldTitle  = "title"
	FieldBody   = "body"
	FieldAuthor = "author"
)

type input struct {
	Title  string `json:"title" validate:"required,min=5,max=100"`
	Body   string `json:"body" validate:"required,min=20,max=5000"`
	Author string `json:"author" validate:"required,min=3,max=50"`
}

var messages = map[string]map[string]string{
	FieldTitle: {
		"required": "Title is required",
		"min":      "Title must be at least 5 characters long",
		"max":      "Title cannot exceed 100 characters",
	},
	FieldBody: {
		"required": "Body is required",
		"min":      "Body must be at least 20 characters long",
		"max":      "Body cannot exceed 5000 characters",
	},
	FieldAuthor: {
		"required": "Author is required",
		"min":      "Author name must be at least 3 characters long",
		"max":      "Author name cannot exceed 50 characters",
	},
}

// Errors maps a field name to a human-readable violation.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Policy validates post drafts. It is safe for concurrent use.
type Policy struct {
	v *validator.Validate
}

// New returns a Policy with the post field rules registered.
func New() *Policy {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	return &Policy{v: v}
}

// Validate returns nil when d is acceptable, otherwise the violations keyed
// by field.
func (p *Policy) Validate(d post.Draft) Errors {
	err := p.v.Struct(input{Title: d.Title, Body: d.Body, Author: d.Author})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{"": err.Error()}
	}
	out := make(Errors, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()][fe.Tag()]
		if !ok {
			msg = fe.Error()
		}
		out[fe.Field()] = msg
	}
	return out
}

// AsErrors extracts violations from err, if it carries any.
func AsErrors(err error) (Errors, bool) {
	var verrs Errors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}

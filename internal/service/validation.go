package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sitepages/internal/stream"
	"github.com/sitepages/internal/validate"
)

// Problem is one validation failure reported back to the author.
type Problem struct {
	Field   string `json:"field"`
	Index   *int   `json:"index,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// ValidationError carries every problem found while validating a save. When
// it is returned nothing has been written.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		label := p.Field
		if p.Index != nil {
			label = fmt.Sprintf("%s[%d]", p.Field, *p.Index)
		}
		parts = append(parts, label+": "+p.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// problems collects validation failures across a whole input.
type problems struct {
	list []Problem
}

func (p *problems) add(field, message string) {
	p.list = append(p.list, Problem{Field: field, Message: message})
}

// addStruct validates v with its struct tags and records failures under
// prefix.
func (p *problems) addStruct(prefix string, v any) {
	err := validate.Struct(v)
	if err == nil {
		return
	}
	for _, fe := range validate.Errors(err) {
		field := prefix
		if fe.Field != "" {
			field = joinField(prefix, fe.Field)
		}
		p.add(field, fe.Message)
	}
}

// addStream validates s against def and records one problem per failing
// block.
func (p *problems) addStream(field string, def stream.Definition, s stream.Stream) {
	err := def.Validate(field, s)
	if err == nil {
		return
	}
	var verr *stream.ValidationError
	if !errors.As(err, &verr) {
		p.add(field, err.Error())
		return
	}
	for _, be := range verr.Errors {
		index := be.Index
		p.list = append(p.list, Problem{
			Field:   field,
			Index:   &index,
			Kind:    string(be.Kind),
			Message: be.Err.Error(),
		})
	}
}

func (p *problems) err() error {
	if len(p.list) == 0 {
		return nil
	}
	return &ValidationError{Problems: p.list}
}

func joinField(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

func indexedField(name string, i int) string {
	return fmt.Sprintf("%s[%d]", name, i)
}

package records

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

var ErrValidation = errors.New("validation failed")

// ValidationError reports form fields that failed validation. It is returned
// before any store or remote call is made.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid form: %s", e.Message)
	}
	return fmt.Sprintf("invalid form fields %s: %s", strings.Join(e.Fields, ", "), e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type FormMode int

const (
	ModeCreate FormMode = iota
	ModeUpdate
)

const schemaBaseURL = "https://recordmirror.local/schema/"

//go:embed schema/*.schema.json
var schemaFS embed.FS

var formSchemas = struct {
	once   sync.Once
	err    error
	create *jsonschema.Schema
	update *jsonschema.Schema
}{}

func compileFormSchemas() error {
	formSchemas.once.Do(func() {
		c := jsonschema.NewCompiler()
		for _, name := range []string{"form_create.schema.json", "form_update.schema.json"} {
			data, err := schemaFS.ReadFile("schema/" + name)
			if err != nil {
				formSchemas.err = err
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
			if err != nil {
				formSchemas.err = fmt.Errorf("parse %s: %w", name, err)
				return
			}
			if err := c.AddResource(schemaBaseURL+name, doc); err != nil {
				formSchemas.err = err
				return
			}
		}
		create, err := c.Compile(schemaBaseURL + "form_create.schema.json")
		if err != nil {
			formSchemas.err = err
			return
		}
		update, err := c.Compile(schemaBaseURL + "form_update.schema.json")
		if err != nil {
			formSchemas.err = err
			return
		}
		formSchemas.create = create
		formSchemas.update = update
	})
	return formSchemas.err
}

// ValidateForm checks the form against the create or update schema.
func ValidateForm(form FormData, mode FormMode) error {
	data, err := json.Marshal(form)
	if err != nil {
		return err
	}
	return ValidateFormJSON(data, mode)
}

// ValidateFormJSON checks a raw form body, so wrong field types are reported
// as validation errors rather than decode failures.
func ValidateFormJSON(data []byte, mode FormMode) error {
	if err := compileFormSchemas(); err != nil {
		return fmt.Errorf("compile form schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &ValidationError{Message: "form is not valid json"}
	}
	schema := formSchemas.update
	if mode == ModeCreate {
		schema = formSchemas.create
	}
	err = schema.Validate(inst)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	fields := map[string]struct{}{}
	collectInvalidFields(verr, fields)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return &ValidationError{Fields: names, Message: describeInvalidFields(mode, names)}
}

func collectInvalidFields(verr *jsonschema.ValidationError, out map[string]struct{}) {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			collectInvalidFields(cause, out)
		}
		return
	}
	if required, ok := verr.ErrorKind.(*kind.Required); ok {
		prefix := strings.Join(verr.InstanceLocation, ".")
		for _, missing := range required.Missing {
			if prefix != "" {
				missing = prefix + "." + missing
			}
			out[missing] = struct{}{}
		}
		return
	}
	if len(verr.InstanceLocation) == 0 {
		out["form"] = struct{}{}
		return
	}
	out[strings.Join(verr.InstanceLocation, ".")] = struct{}{}
}

func describeInvalidFields(mode FormMode, fields []string) string {
	if mode == ModeCreate {
		return "name and username are required and every field must be a string"
	}
	if len(fields) == 1 && fields[0] == "form" {
		return "form must be an object"
	}
	return "name and username cannot be blank and every field must be a string"
}

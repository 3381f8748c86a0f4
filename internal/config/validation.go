package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"gureum/internal/ime"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Fields returns the names of the invalid fields.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i, err := range e {
		out[i] = err.Field
	}
	return out
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig checks c against the built-in rules and the JSON schema.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateInput(&c.Input)...)
	errs = append(errs, validateHID(&c.HID)...)
	errs = append(errs, validateCandidates(&c.Candidates)...)
	errs = append(errs, validateDictionary(&c.Dictionary)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if c.Instance.PidFile == "" {
		errs = append(errs, *RequiredFieldError("instance.pid_file"))
	}

	if len(errs) == 0 {
		errs = append(errs, validateSchema(c)...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateInput(in *InputConfig) ValidationErrors {
	var errs ValidationErrors
	if in.OptionKeyBehavior == "" {
		errs = append(errs, *RequiredFieldError("input.option_key_behavior"))
	} else if _, err := ime.ParseOptionKeyBehavior(in.OptionKeyBehavior); err != nil {
		errs = append(errs, ValidationError{
			Field:   "input.option_key_behavior",
			Message: fmt.Sprintf("invalid behavior: %s (valid: default, ignore)", in.OptionKeyBehavior),
		})
	}
	return errs
}

func validateHID(h *HIDConfig) ValidationErrors {
	var errs ValidationErrors

	switch h.Backend {
	case "evdev", "virtual":
	default:
		errs = append(errs, ValidationError{
			Field:   "hid.backend",
			Message: fmt.Sprintf("invalid backend: %s (valid: evdev, virtual)", h.Backend),
		})
	}

	if h.Backend == "evdev" && h.Search == "" {
		errs = append(errs, *RequiredFieldError("hid.search"))
	}

	if h.Bypass != "" {
		if _, err := regexp.Compile(h.Bypass); err != nil {
			errs = append(errs, ValidationError{
				Field:   "hid.bypass",
				Message: fmt.Sprintf("invalid pattern: %v", err),
			})
		}
	}

	return errs
}

func validateCandidates(c *CandidatesConfig) ValidationErrors {
	var errs ValidationErrors
	if c.PageSize < 1 || c.PageSize > 10 {
		errs = append(errs, *RangeError("candidates.page_size", 1, 10))
	}
	switch c.Orientation {
	case "horizontal", "vertical", "system":
	default:
		errs = append(errs, ValidationError{
			Field:   "candidates.orientation",
			Message: fmt.Sprintf("invalid orientation: %s (valid: horizontal, vertical, system)", c.Orientation),
		})
	}
	return errs
}

func validateDictionary(d *DictionaryConfig) ValidationErrors {
	var errs ValidationErrors
	if d.MaxCandidates < 1 || d.MaxCandidates > 100 {
		errs = append(errs, *RangeError("dictionary.max_candidates", 1, 100))
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func configSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// validateSchema checks the serialized form of c. The caller holds c.mu.
func validateSchema(c *Config) ValidationErrors {
	schema, err := configSchema()
	if err != nil {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}
	return schemaErrors(schema.Validate(instance))
}

// ValidateDocument checks a decoded config document (as produced by the
// TOML, JSON or YAML decoders) against the schema. Unknown keys and values
// of the wrong type are reported before the document reaches a Config.
func ValidateDocument(doc any) error {
	schema, err := configSchema()
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if errs := schemaErrors(schema.Validate(instance)); len(errs) > 0 {
		return errs
	}
	return nil
}

func schemaErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return ValidationErrors{{Field: "schema", Message: err.Error()}}
	}
	var errs ValidationErrors
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			errs = append(errs, ValidationError{
				Field:   schemaField(e.InstanceLocation),
				Message: e.Message,
			})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(verr)
	return errs
}

// schemaField turns a JSON pointer like /logging/level into logging.level.
func schemaField(pointer string) string {
	field := strings.ReplaceAll(strings.TrimPrefix(pointer, "/"), "/", ".")
	if field == "" {
		return "config"
	}
	return field
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}

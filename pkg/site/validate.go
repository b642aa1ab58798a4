package site

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/gofulmen/schema"

	schemasassets "github.com/3leaps/weblift/internal/assets/schemas"
	"github.com/3leaps/weblift/pkg/endpoints"
)

// SchemaID is the schema identifier for site manifests.
const SchemaID = "weblift/v1.0.0/site-manifest"

// Validation errors
var (
	// ErrSchemaNotFound indicates the schema file could not be located.
	ErrSchemaNotFound = errors.New("site manifest schema not found")

	// ErrValidationFailed indicates the manifest failed validation.
	ErrValidationFailed = errors.New("site manifest validation failed")
)

// Cached validator instance (compiled once from embedded schema)
var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Path is the JSON pointer to the problematic field (e.g., "/site/domain").
	Path string

	// Message describes the validation failure.
	Message string
}

// Error implements error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("site manifest validation failed with ")
	b.WriteString(fmt.Sprintf("%d errors:\n", len(e)))
	for i, err := range e {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error type.
func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// validRecordTypes are the record types the DNS stage knows how to upsert.
var validRecordTypes = map[string]bool{
	"A": true, "AAAA": true, "CNAME": true, "TXT": true, "MX": true,
}

// Validate runs semantic checks that the JSON schema cannot express:
// region existence, bucket naming corner cases, and glob pattern syntax.
//
// Returns nil on success, or a ValidationErrors listing every issue.
func (m *Manifest) Validate() error {
	var errs ValidationErrors

	if err := validBucketName(m.Site.Domain); err != nil {
		errs = append(errs, ValidationError{Path: "/site/domain", Message: err.Error()})
	}
	if !endpoints.Known(m.Site.Region) {
		errs = append(errs, ValidationError{
			Path:    "/site/region",
			Message: fmt.Sprintf("unknown region %q (known: %s)", m.Site.Region, strings.Join(endpoints.Regions(), ", ")),
		})
	}

	for i, rec := range m.DNS.Records {
		if !validRecordTypes[rec.Type] {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("/dns/records/%d/type", i),
				Message: fmt.Sprintf("unsupported record type %q", rec.Type),
			})
		}
		if strings.HasPrefix(rec.Name, ".") || strings.Contains(rec.Name, "..") {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("/dns/records/%d/name", i),
				Message: fmt.Sprintf("malformed record name %q", rec.Name),
			})
		}
	}

	for i, pattern := range m.Sync.Excludes {
		if !doublestar.ValidatePattern(pattern) {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("/sync/excludes/%d", i),
				Message: fmt.Sprintf("invalid glob pattern %q", pattern),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validBucketName enforces the naming rules the schema pattern cannot:
// no dotted pairs, no IP-address lookalikes.
func validBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("bucket name must be 3-63 characters, got %d", len(name))
	}
	if strings.Contains(name, "..") {
		return errors.New("bucket name must not contain consecutive dots")
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '.' && r != '-' {
			return fmt.Errorf("bucket name contains invalid character %q", r)
		}
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") ||
		strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return errors.New("bucket name must start and end with a letter or digit")
	}
	return nil
}

// ValidateRaw checks raw JSON data against the site manifest schema.
//
// This function should be used when strict validation is needed, including
// rejection of unknown fields (additionalProperties: false). The raw JSON
// preserves all fields from the original input.
//
// The schema is embedded at compile time, so validation works correctly
// in installed binaries and library consumers without requiring schema
// files to be present on disk.
//
// Returns nil if validation succeeds, or a ValidationErrors with details
// about all validation failures.
func ValidateRaw(jsonData []byte) error {
	v, err := getValidator()
	if err != nil {
		return err
	}

	diags, err := v.ValidateJSON(jsonData)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if len(diags) == 0 {
		return nil
	}

	var errs ValidationErrors
	for _, d := range diags {
		// Only include errors, not warnings
		if d.Severity == schema.SeverityError {
			errs = append(errs, ValidationError{
				Path:    d.Pointer,
				Message: d.Message,
			})
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return errs
}

// getValidator returns a cached validator compiled from the embedded schema.
//
// The validator is compiled once on first use and cached for subsequent calls.
// This is thread-safe via sync.Once.
func getValidator() (*schema.Validator, error) {
	validatorOnce.Do(func() {
		if len(schemasassets.SiteManifestSchema) == 0 {
			validatorErr = fmt.Errorf("%w: embedded site-manifest schema is empty", ErrSchemaNotFound)
			return
		}
		validator, validatorErr = schema.NewValidator(schemasassets.SiteManifestSchema)
		if validatorErr != nil {
			validatorErr = fmt.Errorf("failed to compile site manifest schema: %w", validatorErr)
		}
	})
	return validator, validatorErr
}

package model

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// JobStatus is the lifecycle state of a Job: a job is active if and only
// if it carries a non-null, future NextExecution.
type JobStatus string

// Job lifecycle states.
const (
	JobActive  JobStatus = "active"
	JobPaused  JobStatus = "paused"
	JobDeleted JobStatus = "deleted"
)

// Method is the restricted set of HTTP methods a job template may use.
type Method string

// Allowed request methods. The zero value is not a valid Method.
const (
	MethodGET    Method = "GET"
	MethodPOST   Method = "POST"
	MethodPUT    Method = "PUT"
	MethodDELETE Method = "DELETE"
	MethodPATCH  Method = "PATCH"
)

// Headers is a case-insensitive header mapping. Lookup is case-insensitive
// on the name; the original casing supplied by the caller is preserved for
// display and for the outbound request the invoker sends.
type Headers map[string]string

// Get performs a case-insensitive lookup.
func (h Headers) Get(name string) (string, bool) {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Job is the durable representation of a registered cron-invocation job.
type Job struct {
	ID          int64
	UserID      int64
	Name        string
	Description string
	URL         string
	Method      Method
	Headers     Headers
	Body        string
	CronExpr    string
	Timezone    string
	Status      JobStatus

	SuccessCount  int64
	FailureCount  int64
	LastExecution *time.Time
	NextExecution *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Armable reports whether the job should be held in the dispatcher's live
// set.
func (j *Job) Armable() bool {
	return j.Status == JobActive
}

// JobSpec is the input to CreateJob: everything a caller supplies, before
// the repository assigns identity and bookkeeping fields.
type JobSpec struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=500"`
	URL         string `validate:"required,httpurl"`
	Method      Method `validate:"oneof=GET POST PUT DELETE PATCH"`
	Headers     Headers
	Body        string `validate:"max=10000"`
	CronExpr    string `validate:"required"`
	Timezone    string // defaults to "UTC" if empty
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// httpURL accepts only absolute http(s) URLs with a non-empty host —
// validator's built-in "url" tag is looser than the one invariant the
// invoker actually depends on (a scheme it can dial).
func httpURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validator10() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("httpurl", httpURL)
	})
	return validate
}

// Validate checks the structural invariants that do not require the cron
// evaluator (callers additionally run the cron expression through
// cronspec.Parse). It returns the first violation found, translated from
// validator's field-tag error into this package's ValidationError shape.
func (s *JobSpec) Validate() *CoreError {
	trimmed := *s
	trimmed.Name = strings.TrimSpace(s.Name)

	if err := validator10().Struct(&trimmed); err != nil {
		var fieldErrs validator.ValidationErrors
		if ok := asValidationErrors(err, &fieldErrs); ok && len(fieldErrs) > 0 {
			return ValidationError(jsonFieldName(fieldErrs[0].StructField()), validationMessage(fieldErrs[0]))
		}
		return ValidationError("spec", err.Error())
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		*target = fieldErrs
		return true
	}
	return false
}

func jsonFieldName(structField string) string {
	switch structField {
	case "CronExpr":
		return "cron_expression"
	case "URL":
		return "url"
	default:
		return strings.ToLower(structField)
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "exceeds maximum length of " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "httpurl":
		return "must be a valid http or https URL"
	default:
		return "is invalid"
	}
}

// JobPatch is a partial update to a Job; nil fields are left unchanged. If
// Timezone is non-nil it is used, otherwise the existing timezone is
// retained — it is never paired with a stale cron expression from a
// different update.
type JobPatch struct {
	Name        *string
	Description *string
	URL         *string
	Method      *Method
	Headers     Headers
	Body        *string
	CronExpr    *string
	Timezone    *string
	Status      *JobStatus
}

package model

import "time"

// ExecutionStatus is the outcome of a single job invocation attempt.
type ExecutionStatus string

// Execution lifecycle states. Running is transient: it exists only between
// RecordExecutionStart and the invoker's completion write. A process crash
// mid-invocation can leave a row in this state; the reconciler reclassifies
// it at startup.
const (
	ExecRunning   ExecutionStatus = "running"
	ExecSuccess   ExecutionStatus = "success"
	ExecFailed    ExecutionStatus = "failed"
	ExecTimeout   ExecutionStatus = "timeout"
	ExecCancelled ExecutionStatus = "cancelled"
)

// TriggerSource records why an execution happened.
type TriggerSource string

// Trigger sources.
const (
	TriggerCron   TriggerSource = "cron"
	TriggerManual TriggerSource = "manual"
)

// Categorized invoker failure reasons. WorkerCrashed is only synthesized
// by the reconciler, never by the invoker itself.
const (
	ErrorDNSFailure             = "dns_failure"
	ErrorConnectRefused         = "connect_refused"
	ErrorTLSFailure             = "tls_failure"
	ErrorTimeout                = "timeout"
	ErrorResponseTruncatedRead  = "response_truncated_read_error"
	ErrorHTTPNon2xx             = "http_non_2xx"
	ErrorWorkerCrashed          = "worker_crashed"
)

// JobExecution is one row of execution history for a Job.
type JobExecution struct {
	ID          int64
	JobID       int64
	ExecutedAt  time.Time
	Status      ExecutionStatus
	DurationMS  int64
	ResponseCode *int
	ResponseBody string
	ResponseHeaders map[string]string
	ErrorMessage *string
	TriggeredBy TriggerSource
}

// Outcome is what the invoker hands back to the dispatcher after one
// invocation attempt. It is never an error return — invocation failure is
// an ordinary, recordable result.
type Outcome struct {
	Status          ExecutionStatus
	DurationMS      int64
	ResponseCode    *int
	ResponseBody    string
	ResponseHeaders map[string]string
	ErrorMessage    *string
}

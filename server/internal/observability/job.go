package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// LogFieldJobID is the field name for job ID.
	LogFieldJobID = "job_id"
	// LogFieldJobName is the field name for job name.
	LogFieldJobName = "job"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldErrorCode is the field name for error code.
	LogFieldErrorCode = "error_code"
	// LogFieldQuestionID is the field name for question ID.
	LogFieldQuestionID = "question_id"
	// LogFieldCommentID is the field name for comment ID.
	LogFieldCommentID = "comment_id"
	// LogFieldPersona is the field name for persona name.
	LogFieldPersona = "persona"
)

// JobContext carries the identity and logger of one background job run.
// Every job gets a fresh one; nothing is inherited from the triggering request.
type JobContext struct {
	JobID     string
	JobName   string
	StartTime time.Time
	Logger    *slog.Logger
}

// NewJobContext creates a job context with a generated job ID.
func NewJobContext(logger *slog.Logger, jobName string) *JobContext {
	if logger == nil {
		logger = slog.Default()
	}
	jobID := uuid.New().String()
	return &JobContext{
		JobID:     jobID,
		JobName:   jobName,
		StartTime: time.Now(),
		Logger:    logger.With(slog.String(LogFieldJobID, jobID), slog.String(LogFieldJobName, jobName)),
	}
}

// Info logs an info message.
func (j *JobContext) Info(msg string, attrs ...slog.Attr) {
	j.Logger.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs...)
}

// Debug logs a debug message.
func (j *JobContext) Debug(msg string, attrs ...slog.Attr) {
	j.Logger.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}

// Warn logs a warning message.
func (j *JobContext) Warn(msg string, attrs ...slog.Attr) {
	j.Logger.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}

// Error logs an error message with the error.
func (j *JobContext) Error(msg string, err error, attrs ...slog.Attr) {
	j.Logger.LogAttrs(context.Background(), slog.LevelError, msg, append(attrs, slog.String("error", err.Error()))...)
}

// Duration returns the elapsed time since the job started.
func (j *JobContext) Duration() time.Duration {
	return time.Since(j.StartTime)
}

type ctxKey struct{}

// WithJobContext adds the job context to the context.
func WithJobContext(ctx context.Context, job *JobContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, job)
}

// FromContext extracts the job context from the context.
func FromContext(ctx context.Context) (*JobContext, bool) {
	job, ok := ctx.Value(ctxKey{}).(*JobContext)
	return job, ok
}

// Logger returns the job logger carried by ctx, or the default logger outside a job.
func Logger(ctx context.Context) *slog.Logger {
	if job, ok := FromContext(ctx); ok {
		return job.Logger
	}
	return slog.Default()
}

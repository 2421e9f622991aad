package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_submissions_total",
			Help: "Graded answer submissions by question type and verdict",
		},
		[]string{"type", "correct"},
	)

	submissionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_submission_errors_total",
			Help: "Rejected answer submissions by error class",
		},
		[]string{"class"},
	)

	completions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_completions_total",
			Help: "Learner/quiz pairs that reached completion",
		},
	)

	submitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_submit_duration_seconds",
			Help:    "Time to grade, persist and recompute progress for one submission",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func ObserveSubmission(questionType string, correct bool) {
	submissions.WithLabelValues(questionType, strconv.FormatBool(correct)).Inc()
}

// ObserveSubmissionError counts a rejected submission. class is one of
// validation, not_found, configuration or internal.
func ObserveSubmissionError(class string) {
	submissionErrors.WithLabelValues(class).Inc()
}

func ObserveCompletion() { completions.Inc() }

// SubmitTimer starts a timer; call ObserveDuration on the result when done.
func SubmitTimer() *prometheus.Timer { return prometheus.NewTimer(submitDuration) }

func Handler() http.Handler { return promhttp.Handler() }

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveSubmission("input", true)
	ObserveSubmissionError("validation")
	ObserveCompletion()
	SubmitTimer().ObserveDuration()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `quiz_submissions_total{correct="true",type="input"}`)
	assert.Contains(t, string(body), `quiz_submission_errors_total{class="validation"}`)
	assert.Contains(t, string(body), "quiz_completions_total")
	assert.Contains(t, string(body), "quiz_submit_duration_seconds_count")
}

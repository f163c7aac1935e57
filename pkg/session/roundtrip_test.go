package session

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infraops/pkg/tools"
)

// TestClassifyThenExecuteRoundTrip drives the stateless HTTP confirmation
// flow end to end: classify on /nlp, then echo the proposed intent back to
// /nlp/execute with the confirmation flag.
func TestClassifyThenExecuteRoundTrip(t *testing.T) {
	inv := &recordingInvoker{reply: "bucket created"}
	_, mux := newTestServer(t, inv)

	rec := doJSON(t, mux, http.MethodPost, "/nlp",
		map[string]string{"message": "create an S3 bucket named demo-assets"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var classified struct {
		Tool                 string         `json:"tool"`
		Args                 map[string]any `json:"args"`
		RequiresConfirmation bool           `json:"requiresConfirmation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &classified))
	require.Equal(t, tools.ToolCreateS3Bucket, classified.Tool)
	require.True(t, classified.RequiresConfirmation)
	assert.Equal(t, "demo-assets", classified.Args["bucket_name"])
	assert.Zero(t, inv.callCount(), "classification must not execute")

	// Phase 2: the exact proposed intent comes back confirmed. Same tool,
	// same args, no re-interpretation.
	rec = doJSON(t, mux, http.MethodPost, "/nlp/execute", map[string]any{
		"tool":          classified.Tool,
		"args":          classified.Args,
		"userConfirmed": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var executed map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &executed))
	assert.Equal(t, "bucket created", executed["result"])

	require.Equal(t, 1, inv.callCount())
	assert.Equal(t, "create_s3_bucket", inv.calls[0])
}

package workerproc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const directBody = `{"JobId":"job-1","Status":"SUCCEEDED","API":"StartDocumentAnalysis","JobTag":"inv-1","Timestamp":1733740800000,"DocumentLocation":{"S3ObjectName":"invoices/a/1-x.pdf","S3Bucket":"bucket"}}`

func TestParseNotificationDirect(t *testing.T) {
	n, meta, err := ParseNotification(directBody)
	require.NoError(t, err)
	assert.Equal(t, "job-1", n.JobID)
	assert.Equal(t, "SUCCEEDED", n.Status)
	assert.Equal(t, "StartDocumentAnalysis", n.API)
	assert.Equal(t, "inv-1", n.JobTag)
	assert.Equal(t, "bucket", n.DocumentLocation.S3Bucket)
	assert.Equal(t, len(directBody), meta.BodyLen)
	assert.Len(t, meta.BodySHA, 64)
}

func TestParseNotificationWrapped(t *testing.T) {
	body, err := EncodeWrapped(Notification{JobID: "job-2", Status: "FAILED", API: "StartDocumentAnalysis"}, "msg-1", "arn:aws:sns:eu-central-1:1:textract")
	require.NoError(t, err)

	n, _, err := ParseNotification(string(body))
	require.NoError(t, err)
	assert.Equal(t, "job-2", n.JobID)
	assert.Equal(t, "FAILED", n.Status)
}

func TestParseNotificationErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, err error)
	}{
		{"empty", "  ", func(t *testing.T, err error) {
			var target ErrEmptyBody
			assert.True(t, errors.As(err, &target))
		}},
		{"invalid json", "{bad-json", func(t *testing.T, err error) {
			var target ErrDecode
			assert.True(t, errors.As(err, &target))
		}},
		{"wrapped invalid inner", `{"Type":"Notification","Message":"not json"}`, func(t *testing.T, err error) {
			var target ErrDecode
			assert.True(t, errors.As(err, &target))
		}},
		{"wrapped without job", `{"Type":"Notification","Message":"{\"Status\":\"SUCCEEDED\"}"}`, func(t *testing.T, err error) {
			var target ErrUnrecognizedEnvelope
			assert.True(t, errors.As(err, &target))
		}},
		{"direct without api", `{"JobId":"job-1","Status":"SUCCEEDED"}`, func(t *testing.T, err error) {
			var target ErrUnrecognizedEnvelope
			assert.True(t, errors.As(err, &target))
		}},
		{"wrapped without api", `{"Type":"Notification","Message":"{\"JobId\":\"job-1\",\"Status\":\"SUCCEEDED\"}"}`, func(t *testing.T, err error) {
			var target ErrUnrecognizedEnvelope
			assert.True(t, errors.As(err, &target))
		}},
		{"unknown shape", `{"hello":"world"}`, func(t *testing.T, err error) {
			var target ErrUnrecognizedEnvelope
			assert.True(t, errors.As(err, &target))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseNotification(tt.body)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestEncodeDirect(t *testing.T) {
	body, err := EncodeDirect(Notification{JobID: "job-3", Status: "SUCCEEDED", API: "StartDocumentAnalysis"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"JobId":"job-3","Status":"SUCCEEDED","API":"StartDocumentAnalysis","DocumentLocation":{}}`, string(body))
}

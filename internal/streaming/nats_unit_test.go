package streaming

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobMessageSerialization(t *testing.T) {
	tests := []struct {
		name string
		msg  JobMessage
	}{
		{
			name: "full message",
			msg: JobMessage{
				JobID:  "job-123",
				Precog: "schema",
				Task:   "extract facts",
				Context: map[string]interface{}{
					"domain_name": "example.com",
					"source_url":  "https://example.com/about",
				},
			},
		},
		{
			name: "zero values",
			msg: JobMessage{
				JobID: "job-zero",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			require.NoError(t, err)

			var decoded JobMessage
			require.NoError(t, json.Unmarshal(data, &decoded))

			assert.Equal(t, tt.msg.JobID, decoded.JobID)
			assert.Equal(t, tt.msg.Precog, decoded.Precog)
			assert.Equal(t, tt.msg.Task, decoded.Task)
		})
	}
}

func TestJobMessageJSONFieldNames(t *testing.T) {
	msg := JobMessage{
		JobID:  "j1",
		Precog: "general",
		Task:   "summarize",
		Context: map[string]interface{}{
			"k": "v",
		},
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, `"job_id"`)
	assert.Contains(t, raw, `"precog"`)
	assert.Contains(t, raw, `"task"`)
	assert.Contains(t, raw, `"context"`)
}

func TestDLQRecordSerialization(t *testing.T) {
	rec := DLQRecord{
		JobMessage: JobMessage{
			JobID:  "job-456",
			Precog: "schema",
			Task:   "extract",
		},
		Error:   "upstream fetch timed out",
		Retries: 3,
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded DLQRecord
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, rec.JobID, decoded.JobID)
	assert.Equal(t, rec.Error, decoded.Error)
	assert.Equal(t, rec.Retries, decoded.Retries)

	raw := string(data)
	assert.Contains(t, raw, `"error"`)
	assert.Contains(t, raw, `"retries"`)
}

func TestNATSClientCloseNilConn(t *testing.T) {
	client := &NATSClient{}
	assert.NotPanics(t, func() {
		client.Close()
	})
}

func TestNATSClientImplementsStreamBus(t *testing.T) {
	var _ StreamBus = (*NATSClient)(nil)
}

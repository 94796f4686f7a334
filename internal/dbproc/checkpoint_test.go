package dbproc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bennostein/skdbsim/internal/dbproc"
)

func TestExtractCheckpointEmptyPayload(t *testing.T) {
	assert.Equal(t, 5, dbproc.ExtractCheckpoint(5, ""))
	assert.Equal(t, 0, dbproc.ExtractCheckpoint(-3, ""))
}

func TestExtractCheckpointTakesMaxOfMarkers(t *testing.T) {
	payload := "0,'foo'\n:3\n1,'bar'\n:7\n:2\n"
	assert.Equal(t, 7, dbproc.ExtractCheckpoint(0, payload))
	assert.Equal(t, 10, dbproc.ExtractCheckpoint(10, payload))
}

func TestExtractCheckpointIgnoresMalformedMarkers(t *testing.T) {
	payload := ":notanumber\n:5\n"
	assert.Equal(t, 5, dbproc.ExtractCheckpoint(0, payload))
}

package vectorindex

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestToPointIDPassesThroughValidUUID(t *testing.T) {
	id := uuid.New().String()
	assert.Equal(t, id, ToPointID(id))
}

func TestToPointIDIsDeterministicForNonUUID(t *testing.T) {
	a := ToPointID("heuristic-42")
	b := ToPointID("heuristic-42")
	assert.Equal(t, a, b)
	assert.NotEqual(t, "heuristic-42", a)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestToPointIDDiffersAcrossIDs(t *testing.T) {
	assert.NotEqual(t, ToPointID("a"), ToPointID("b"))
}

func TestNewRejectsEmptyCollection(t *testing.T) {
	_, err := New("qdrant://localhost:6334", "", 4, "cosine")
	assert.Error(t, err)
}

func TestConnectDefaultsPortAndHost(t *testing.T) {
	client, err := Connect("qdrant://")
	if err != nil {
		t.Skipf("qdrant client construction unavailable in this environment: %v", err)
	}
	defer client.Close()
}

func TestConnectRejectsInvalidPort(t *testing.T) {
	_, err := Connect("qdrant://localhost:not-a-port")
	assert.Error(t, err)
}

func TestConnectUsesAPIKeyQueryParam(t *testing.T) {
	client, err := Connect("qdrant://localhost:6334?api_key=secret")
	if err != nil {
		t.Skipf("qdrant client construction unavailable in this environment: %v", err)
	}
	defer client.Close()
}

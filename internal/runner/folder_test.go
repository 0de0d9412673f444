package runner

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func collectionDoc(t *testing.T) json.RawMessage {
	t.Helper()
	return unwrapEnvelope(json.RawMessage(sampleCollection), "collection")
}

func TestResolveFolderName(t *testing.T) {
	doc := collectionDoc(t)

	tests := []struct {
		name     string
		folderID string
		want     string
	}{
		{name: "no folder", folderID: "", want: ""},
		{name: "bare id", folderID: "f1", want: "Accounts"},
		{name: "uid", folderID: "123-f1", want: "Accounts"},
		{name: "prefixed uid with bare id stored", folderID: "999-f2", want: "Admin"},
		{name: "nested folder", folderID: "f2", want: "Admin"},
		{name: "folder name passes through", folderID: "Accounts", want: "Accounts"},
		{name: "request is not a folder", folderID: "r3", want: "r3"},
		{name: "unknown id falls back", folderID: "nonexistent-id", want: "nonexistent-id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveFolderName(tt.folderID, doc))
		})
	}
}

func TestResolveFolderNameLegacyPostmanID(t *testing.T) {
	doc := json.RawMessage(`{"item":[{"_postman_id":"legacy-1","name":"Legacy","item":[{"name":"req"}]}]}`)
	assert.Equal(t, "Legacy", ResolveFolderName("legacy-1", doc))
}

func TestResolveFolderNameFirstMatchWins(t *testing.T) {
	doc := json.RawMessage(`{"item":[
		{"id":"abc","name":"First","item":[{"name":"a"}]},
		{"id":"xabc","name":"Second","item":[{"name":"b"}]}
	]}`)
	assert.Equal(t, "First", ResolveFolderName("1-xabc", doc))
}

func TestResolveFolderNameEmptyFolderNotEligible(t *testing.T) {
	doc := json.RawMessage(`{"item":[{"id":"empty","name":"Empty","item":[]}]}`)
	assert.Equal(t, "empty", ResolveFolderName("empty", doc))
}

func TestResolveFolderNameInvalidDocument(t *testing.T) {
	assert.Equal(t, "f1", ResolveFolderName("f1", json.RawMessage(`not json`)))
	assert.Equal(t, "f1", ResolveFolderName("f1", json.RawMessage(`{}`)))
}

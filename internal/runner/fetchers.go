package runner

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/tidwall/gjson"
)

// Getter is the read side of the Postman API client
type Getter interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
}

// FetchCollection retrieves a collection document by id
func FetchCollection(ctx context.Context, client Getter, collectionID string) (*CollectionData, error) {
	data, err := client.Get(ctx, "/collections/"+url.PathEscape(collectionID))
	if err != nil {
		return nil, &FetchError{Kind: ErrFetchCollection, ID: collectionID, Err: err}
	}

	doc := unwrapEnvelope(data, "collection")
	return &CollectionData{
		JSON: doc,
		Name: nameOrUnknown(doc, "info.name"),
		ID:   collectionID,
	}, nil
}

// FetchEnvironment retrieves an environment document by id
func FetchEnvironment(ctx context.Context, client Getter, environmentID string) (*EnvironmentData, error) {
	data, err := client.Get(ctx, "/environments/"+url.PathEscape(environmentID))
	if err != nil {
		return nil, &FetchError{Kind: ErrFetchEnvironment, ID: environmentID, Err: err}
	}

	doc := unwrapEnvelope(data, "environment")
	return &EnvironmentData{
		JSON: doc,
		Name: nameOrUnknown(doc, "name"),
		ID:   environmentID,
	}, nil
}

// unwrapEnvelope returns data[key] when it is an object, otherwise data itself
func unwrapEnvelope(data json.RawMessage, key string) json.RawMessage {
	inner := gjson.GetBytes(data, key)
	if inner.Exists() && inner.IsObject() {
		return json.RawMessage(inner.Raw)
	}
	return data
}

func nameOrUnknown(doc json.RawMessage, path string) string {
	if name := gjson.GetBytes(doc, path).String(); name != "" {
		return name
	}
	return "Unknown"
}

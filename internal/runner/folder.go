package runner

import (
	"encoding/json"
	"strings"
)

type collectionItem struct {
	ID        string           `json:"id"`
	PostmanID string           `json:"_postman_id"`
	UID       string           `json:"uid"`
	Name      string           `json:"name"`
	Item      []collectionItem `json:"item"`
}

// ResolveFolderName maps a folder name, id or uid to the folder's display name,
// which is what newman filters on. An empty folderID means no filter. When no
// folder matches, folderID is returned unchanged.
//
// A folder matches when its id or uid equals folderID or is a suffix of it, so
// an owner-prefixed uid finds a folder stored with a bare id. Two folders whose
// ids share a suffix can collide; the first depth-first match wins.
func ResolveFolderName(folderID string, collection json.RawMessage) string {
	if folderID == "" {
		return ""
	}

	var doc struct {
		Item []collectionItem `json:"item"`
	}
	if err := json.Unmarshal(collection, &doc); err != nil {
		return folderID
	}

	if name, ok := findFolder(doc.Item, folderID); ok {
		return name
	}
	return folderID
}

func findFolder(items []collectionItem, target string) (string, bool) {
	for _, item := range items {
		if len(item.Item) == 0 {
			continue
		}
		if item.matches(target) {
			return item.Name, true
		}
		if name, ok := findFolder(item.Item, target); ok {
			return name, true
		}
	}
	return "", false
}

func (i collectionItem) matches(target string) bool {
	id := i.ID
	if id == "" {
		id = i.PostmanID
	}

	switch {
	case id != "" && (id == target || strings.HasSuffix(target, id)):
		return true
	case i.UID != "" && (i.UID == target || strings.HasSuffix(target, i.UID)):
		return true
	}
	return false
}

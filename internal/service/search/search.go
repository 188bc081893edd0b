package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"
)

// UserDocument is what gets indexed per user. Password material never leaves
// the relational store.
type UserDocument struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IndexUser upserts the user document, keyed by user id.
func IndexUser(ctx context.Context, es *elasticsearch.Client, index string, doc UserDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("index user: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(data),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, es)
	if err != nil {
		return fmt.Errorf("index user: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index user: %s", res.Status())
	}
	return nil
}

func DeleteUser(ctx context.Context, es *elasticsearch.Client, index, userID string) error {
	req := esapi.DeleteRequest{
		Index:      index,
		DocumentID: userID,
		Refresh:    "true",
	}

	res, err := req.Do(ctx, es)
	if err != nil {
		return fmt.Errorf("delete user document: %w", err)
	}
	defer res.Body.Close()

	// 404 just means the user was never indexed.
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete user document: %s", res.Status())
	}
	return nil
}

// Users runs a fuzzy match over the email field and returns the hits.
func Users(ctx context.Context, es *elasticsearch.Client, index, query string, from, size int) (int64, []UserDocument, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     strings.TrimSpace(query),
				"fields":    []string{"email^2", "role"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search users: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search users: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, nil, fmt.Errorf("search users: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source UserDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	users := make([]UserDocument, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		users[i] = hit.Source
	}
	return r.Hits.Total.Value, users, nil
}

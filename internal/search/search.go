// Package search indexes health records in Elasticsearch and runs
// owner-filtered full-text queries over them.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
)

var ErrUnavailable = errors.New("search is not configured")

type Document struct {
	Kind       string    `json:"kind"`
	RecordID   uint      `json:"record_id"`
	UserID     uint      `json:"user_id"`
	Text       string    `json:"text"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (d Document) docID() string {
	return docID(d.Kind, d.RecordID)
}

func docID(kind string, recordID uint) string {
	return kind + "-" + strconv.FormatUint(uint64(recordID), 10)
}

// Indexer is what record services need; *Client satisfies it.
type Indexer interface {
	Index(ctx context.Context, doc Document) error
	Delete(ctx context.Context, kind string, recordID uint) error
}

type Client struct {
	es    *elasticsearch.Client
	index string
}

func NewClient(ctx context.Context, url, user, password, index string) (*Client, error) {
	const op = "search.NewClient"

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res, err := es.Info(es.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%s: info: %w", op, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("%s: info: %s: %s", op, res.Status(), body)
	}

	return &Client{es: es, index: index}, nil
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "kind":        {"type": "keyword"},
      "record_id":   {"type": "long"},
      "user_id":     {"type": "long"},
      "text":        {"type": "text"},
      "recorded_at": {"type": "date"}
    }
  }
}`

// EnsureIndex creates the index with its mapping if it is missing.
func (c *Client) EnsureIndex(ctx context.Context) error {
	const op = "search.EnsureIndex"

	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.es.Indices.Create(c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%s: %s", op, res.Status())
	}
	return nil
}

func (c *Client) Index(ctx context.Context, doc Document) error {
	const op = "search.Index"

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := c.es.Index(c.index, bytes.NewReader(body),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(doc.docID()),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%s: %s", op, res.Status())
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, kind string, recordID uint) error {
	const op = "search.Delete"

	res, err := c.es.Delete(c.index, docID(kind, recordID), c.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()
	// 404: never indexed, nothing to remove
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("%s: %s", op, res.Status())
	}
	return nil
}

func buildQuery(userID uint, query string, from, size int) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":     query,
						"fields":    []string{"text", "kind^2"},
						"fuzziness": "AUTO",
					},
				},
				"filter": []any{
					map[string]any{"term": map[string]any{"user_id": userID}},
				},
			},
		},
		"from": from,
		"size": size,
	}
}

// Search only ever returns documents owned by userID.
func (c *Client) Search(ctx context.Context, userID uint, query string, from, size int) (int64, []Document, error) {
	const op = "search.Search"

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildQuery(userID, query, from, size)); err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("%s: %s", op, res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	docs := make([]Document, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		// never leak another owner's hit
		if hit.Source.UserID != userID {
			continue
		}
		docs = append(docs, hit.Source)
	}
	return r.Hits.Total.Value, docs, nil
}

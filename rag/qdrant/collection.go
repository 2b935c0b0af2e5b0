package qdrant

import (
	"context"
	"errors"
	"net/http"

	"github.com/smallnest/campusrag/rag"
)

// Point is one vector record to upsert. ID must be an unsigned integer or a
// UUID string.
type Point struct {
	ID      any                  `json:"id"`
	Vector  map[string][]float32 `json:"vector"`
	Payload map[string]any       `json:"payload,omitempty"`
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollection struct {
	Vectors       map[string]vectorParams `json:"vectors"`
	SparseVectors map[string]struct{}     `json:"sparse_vectors"`
}

// EnsureCollection creates the collection with a dense vector of dim and a
// sparse vector when it does not exist yet.
func (c *Client) EnsureCollection(ctx context.Context, dim int) error {
	err := c.do(ctx, http.MethodGet, c.collectionPath(), nil, nil)
	if err == nil {
		return nil
	}
	var e *rag.Error
	if !errors.As(err, &e) || e.Status != http.StatusNotFound {
		return err
	}

	body := createCollection{
		Vectors:       map[string]vectorParams{c.denseName: {Size: dim, Distance: DefaultDistance}},
		SparseVectors: map[string]struct{}{c.sparseName: {}},
	}
	if err := c.do(ctx, http.MethodPut, c.collectionPath(), body, nil); err != nil {
		return err
	}
	c.logger.Info("qdrant.collection_created name=%s dim=%d", c.collection, dim)
	return nil
}

// Upsert writes points and waits for the operation to be applied.
func (c *Client) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := struct {
		Points []Point `json:"points"`
	}{Points: points}
	return c.do(ctx, http.MethodPut, c.collectionPath("points")+"?wait=true", body, nil)
}

package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mohammed-shakir/scene-catalog/internal/core/normalize"
	"github.com/mohammed-shakir/scene-catalog/internal/logger"
)

type listItem struct {
	EntityID  json.RawMessage `json:"entityId"`
	DisplayID string          `json:"displayId"`
}

// ResolveEntityID maps one display identifier to its entity identifier.
func (c *Client) ResolveEntityID(ctx context.Context, displayID, dataset string) (string, error) {
	ids, err := c.resolve(ctx, dataset, "entityId", displayID, []string{displayID})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// ResolveEntityIDs maps display identifiers to entity identifiers, keeping
// input order and cardinality.
func (c *Client) ResolveEntityIDs(ctx context.Context, displayIDs []string, dataset string) ([]string, error) {
	if len(displayIDs) == 0 {
		return []string{}, nil
	}
	// the list holds each scene once
	pos := make(map[string]int, len(displayIDs))
	uniq := make([]string, 0, len(displayIDs))
	for _, d := range displayIDs {
		if _, seen := pos[d]; !seen {
			pos[d] = len(uniq)
			uniq = append(uniq, d)
		}
	}
	ids, err := c.resolve(ctx, dataset, "entityIds", uniq, uniq)
	if err != nil {
		return nil, err
	}
	if len(uniq) == len(displayIDs) {
		return ids, nil
	}
	out := make([]string, len(displayIDs))
	for i, d := range displayIDs {
		out[i] = ids[pos[d]]
	}
	return out, nil
}

// resolve goes through a temporary named scene list: add, get, remove.
func (c *Client) resolve(ctx context.Context, dataset, idParam string, idValue any, want []string) (ids []string, err error) {
	ctx = logger.WithDataset(ctx, dataset)
	listID := c.listID()

	if _, err := c.do(ctx, "scene-list-add", map[string]any{
		"listId":      listID,
		"datasetName": dataset,
		"idField":     "displayId",
		idParam:       idValue,
	}); err != nil {
		return nil, err
	}
	defer func() {
		if _, rerr := c.do(ctx, "scene-list-remove", map[string]any{"listId": listID}); rerr != nil {
			c.log.ErrorContext(ctx, "scene list cleanup failed", "list_id", listID, "err", rerr)
			if err == nil {
				ids, err = nil, fmt.Errorf("remove scene list %s: %w", listID, rerr)
			}
		}
	}()

	data, err := c.do(ctx, "scene-list-get", map[string]any{"listId": listID})
	if err != nil {
		return nil, err
	}
	var items []listItem
	if !isEmpty(data) {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("scene-list-get: decode: %w", err)
		}
	}
	if len(items) != len(want) {
		return nil, fmt.Errorf("%w: %d of %d display ids resolved in %s", ErrSceneNotFound, len(items), len(want), dataset)
	}
	return orderByDisplayID(items, want)
}

// orderByDisplayID aligns the list items with the requested display ids when
// the catalog echoes them, and falls back to response order otherwise.
func orderByDisplayID(items []listItem, want []string) ([]string, error) {
	byDisplay := make(map[string]string, len(items))
	positional := make([]string, len(items))
	for i, it := range items {
		id, err := entityIDOf(it.EntityID)
		if err != nil {
			return nil, err
		}
		positional[i] = id
		if it.DisplayID != "" {
			byDisplay[it.DisplayID] = id
		}
	}
	if len(byDisplay) == 0 {
		return positional, nil
	}
	out := make([]string, len(want))
	for i, d := range want {
		id, ok := byDisplay[d]
		if !ok {
			return nil, fmt.Errorf("%w: display id %q", ErrSceneNotFound, d)
		}
		out[i] = id
	}
	return out, nil
}

func entityIDOf(raw json.RawMessage) (string, error) {
	if isEmpty(raw) {
		return "", nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("decode entity id: %w", err)
	}
	return normalize.CoerceID(v), nil
}

// GetMetadata fetches the full metadata of one scene and normalizes it.
func (c *Client) GetMetadata(ctx context.Context, entityID, dataset string, includeBrowse bool) (normalize.Record, error) {
	ctx = logger.WithDataset(ctx, dataset)
	data, err := c.do(ctx, "scene-metadata", map[string]any{
		"datasetName":  dataset,
		"entityId":     entityID,
		"metadataType": "full",
	})
	if err != nil {
		return nil, err
	}
	if isEmpty(data) {
		return nil, fmt.Errorf("%w: entity id %q in %s", ErrSceneNotFound, entityID, dataset)
	}
	var raw normalize.RawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("scene-metadata: decode: %w", err)
	}
	rec, err := normalize.Normalize(raw, normalize.Options{IncludeBrowse: includeBrowse, Dataset: dataset})
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", entityID, err)
	}
	return rec, nil
}

// GetDisplayID returns the display identifier of a scene.
func (c *Client) GetDisplayID(ctx context.Context, entityID, dataset string) (string, error) {
	rec, err := c.GetMetadata(ctx, entityID, dataset, false)
	if err != nil {
		return "", err
	}
	id := rec.DisplayID()
	if id == "" {
		return "", errors.New("scene metadata has no display_id")
	}
	return id, nil
}

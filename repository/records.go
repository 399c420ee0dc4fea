package repository

import (
	"encoding/json"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/recordstore"
)

func decode[T any](raw json.RawMessage) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, apperrors.Internal("decode record", err)
	}
	return &v, nil
}

func decodeAll[T any](items []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, raw := range items {
		v, err := decode[T](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func decodePage[T any](res *recordstore.ListResult) ([]T, error) {
	return decodeAll[T](res.Items)
}

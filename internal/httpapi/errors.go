package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"hopperGateway/internal/apperrors"
)

const maxBodyBytes = 1 << 20

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError is the only place where a failure becomes a status code.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	e, ok := apperrors.As(err)
	if !ok {
		e = &apperrors.Error{Kind: apperrors.KindInternal, Err: err}
	}
	status := e.HTTPStatus()

	switch e.Kind {
	case apperrors.KindAuthentication:
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, status, map[string]any{"detail": e.Msg})
	case apperrors.KindValidation, apperrors.KindNotFound:
		detail := e.Detail
		if detail == nil {
			detail = e.Msg
		}
		writeJSON(w, status, map[string]any{"detail": detail})
	case apperrors.KindUpstream:
		a.logger.WarnWithContext(ctx, "upstream call failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
		body := map[string]any{"error": e.Msg}
		if e.Detail != nil {
			body["detail"] = e.Detail
		}
		writeJSON(w, status, body)
	default:
		a.logger.ErrorWithContext(ctx, "request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, status, map[string]any{"error": "Internal server error"})
	}
}

// readBody returns the request body with surrounding whitespace removed.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, apperrors.Validation("could not read request body")
	}
	return bytes.TrimSpace(b), nil
}

// decodeJSON decodes a required JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	b, err := readBody(r)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return apperrors.Validation("request body is required")
	}
	return unmarshalBody(b, v)
}

func unmarshalBody(b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		return apperrors.Validation("invalid JSON body: " + err.Error())
	}
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// includeParam is consumed at the HTTP boundary; everything else in the
// query string goes to the query parser untouched.
const includeParam = "include"

// parsePath splits /api/v1/{model}[/{id}[/{action}]] into its segments.
func parsePath(path string) (model, id, action string, err error) {
	path = strings.TrimPrefix(path, "/api/v1/")
	path = strings.Trim(path, "/")
	if path == "" {
		return "", "", "", fmt.Errorf("invalid path: empty model name")
	}

	parts := strings.Split(path, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", "", nil
	case 2:
		return parts[0], parts[1], "", nil
	case 3:
		return parts[0], parts[1], parts[2], nil
	default:
		return "", "", "", fmt.Errorf("invalid path format")
	}
}

// splitQuery separates the include list from the raw query map the parser
// consumes. Repeated keys keep their first value.
func splitQuery(values url.Values) (rawQuery map[string]string, include []string) {
	rawQuery = make(map[string]string, len(values))
	for key, list := range values {
		if len(list) == 0 {
			continue
		}
		if strings.EqualFold(key, includeParam) {
			for _, relation := range strings.Split(list[0], ",") {
				if relation = strings.TrimSpace(relation); relation != "" {
					include = append(include, relation)
				}
			}
			continue
		}
		rawQuery[key] = list[0]
	}
	return rawQuery, include
}

// readJSONBody decodes the request body into dst.
func readJSONBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

// writeSuccess writes a JSON response with the given status.
func writeSuccess(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

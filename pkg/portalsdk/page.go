package portalsdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Page is one page of a list endpoint.
type Page[T any] struct {
	Items []T
	Total int
}

// totalHeaders are checked in order when the list comes as a bare array.
var totalHeaders = []string{"X-Total-Count", "X-Total"}

// decodePage normalises the two list shapes the backend uses: an envelope
// {<key>: [...], "totalRegistros": n} under any of envelopeKeys, or a bare
// array with the total in a response header, falling back to the item
// count.
func decodePage[T any](resp *http.Response, body []byte, envelopeKeys ...string) (Page[T], error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return Page[T]{Items: []T{}, Total: headerTotal(resp.Header, 0)}, nil
	}

	if body[0] == '[' {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return Page[T]{}, fmt.Errorf("decode list: %w", err)
		}
		return Page[T]{Items: items, Total: headerTotal(resp.Header, len(items))}, nil
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return Page[T]{}, fmt.Errorf("decode envelope: %w", err)
	}

	rawTotal, hasTotal := env["totalRegistros"]
	for _, key := range envelopeKeys {
		rawItems, ok := env[key]
		if !ok || !hasTotal {
			continue
		}

		var items []T
		if string(rawItems) != "null" {
			if err := json.Unmarshal(rawItems, &items); err != nil {
				return Page[T]{}, fmt.Errorf("decode %s: %w", key, err)
			}
		}
		if items == nil {
			items = []T{}
		}

		var total int
		if err := json.Unmarshal(rawTotal, &total); err != nil {
			return Page[T]{}, fmt.Errorf("decode totalRegistros: %w", err)
		}
		return Page[T]{Items: items, Total: total}, nil
	}

	// Unknown object: nothing listable
	return Page[T]{Items: []T{}, Total: headerTotal(resp.Header, 0)}, nil
}

func headerTotal(h http.Header, fallback int) int {
	for _, name := range totalHeaders {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return fallback
}

package database

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Loader helpers. Raw submission data is free-form client JSON that
// drifts across template versions, so every extraction is tolerant:
// wrong types degrade to zero values instead of failing the load.

func parseDataJSON(dataJSON string) map[string]interface{} {
	data := make(map[string]interface{})
	if strings.TrimSpace(dataJSON) == "" {
		return data
	}
	// Truncated blobs fail to parse and degrade to an empty map. The
	// loader then derives zero child rows and the health view reports
	// the gap.
	if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
		return map[string]interface{}{}
	}
	return data
}

func asMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return nil
}

func asSlice(v interface{}) []interface{} {
	if s, ok := v.([]interface{}); ok {
		return s
	}
	return nil
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		return ""
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(n, ",", ".")), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func asInt(v interface{}) int {
	if f, ok := asFloat(v); ok {
		return int(f)
	}
	return 0
}

// headerField resolves a header value with the template fallback
// chain: data.<key> first, then data.encabezado.<key>.
func headerField(data map[string]interface{}, key string) string {
	if v := asString(data[key]); v != "" {
		return v
	}
	if enc := asMap(data["encabezado"]); enc != nil {
		return asString(enc[key])
	}
	return ""
}

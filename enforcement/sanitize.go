package enforcement

// poisonKeys are the keys stripped from key-value payloads before they reach
// the executor: each could poison a structural prototype chain on a dynamic
// host embedding this kernel.
var poisonKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// sanitizePayload strips poisonKeys from a map[string]interface{} payload,
// recursing into nested maps and slices of maps. Scalar payloads, and any
// payload that isn't a key-value structure, pass through untouched.
func sanitizePayload(payload interface{}) interface{} {
	switch v := payload.(type) {
	case map[string]interface{}:
		return sanitizeMap(v)
	default:
		return payload
	}
}

func sanitizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if _, poison := poisonKeys[k]; poison {
			continue
		}
		switch vv := v.(type) {
		case map[string]interface{}:
			out[k] = sanitizeMap(vv)
		case []interface{}:
			out[k] = sanitizeSlice(vv)
		default:
			out[k] = v
		}
	}
	return out
}

func sanitizeSlice(s []interface{}) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		if m, ok := v.(map[string]interface{}); ok {
			out[i] = sanitizeMap(m)
		} else {
			out[i] = v
		}
	}
	return out
}

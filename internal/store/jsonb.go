package store

import "encoding/json"

// jsonbValue marshals an arbitrary Go value for a jsonb column, defaulting
// an untyped nil to an empty JSON object/array. A typed nil map or slice
// is not caught here and marshals to a JSON "null".
func jsonbValue(v any, emptyArray bool) ([]byte, error) {
	if v == nil {
		if emptyArray {
			return []byte("[]"), nil
		}
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func scanJSONB(data []byte, out any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

package store

import (
	"encoding/json"
	"fmt"
)

// String gets the required string parameter key from conf.
func String(conf map[string]interface{}, key string) (string, error) {
	s, ok := conf[key].(string)
	if !ok {
		return "", fmt.Errorf("missing %q parameter", key)
	}
	return s, nil
}

// Int gets the integer parameter key from conf,
// or def if it is absent.
// Config decoded with json.Decoder.UseNumber yields json.Number values;
// plain json.Unmarshal yields float64.
func Int(conf map[string]interface{}, key string, def int) (int, error) {
	val, ok := conf[key]
	if !ok {
		return def, nil
	}
	switch v := val.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	}
	return 0, fmt.Errorf("%q parameter is a %T, not a number", key, val)
}

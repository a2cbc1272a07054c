package api

import (
	"encoding/json"
	"io"

	"github.com/banshee-data/smart-traffic/internal/timing"
)

const (
	errCountsShape = "car_counts must be a list of four integers"
	errCountsValue = "car_counts values must be non-negative integers"
)

// decodeCarCounts reads {"car_counts": [n, e, s, w]} from body. Any body
// that is not a JSON object is treated as an empty object. Only JSON
// integers in [0, timing.MaxCount] are accepted: 1.0, "1", true and null
// are all rejected. On failure the returned string is the client-facing
// message.
func decodeCarCounts(body io.Reader) ([]int, string) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		payload = nil
	}
	// Trailing data makes the whole body invalid.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		payload = nil
	}

	raw, ok := payload["car_counts"].([]interface{})
	if !ok || len(raw) != timing.NumApproaches {
		return nil, errCountsShape
	}

	values := make([]int, len(raw))
	for i, v := range raw {
		n, ok := v.(json.Number)
		if !ok {
			return nil, errCountsValue
		}
		i64, err := n.Int64()
		if err != nil || i64 < 0 || i64 > timing.MaxCount {
			return nil, errCountsValue
		}
		values[i] = int(i64)
	}
	return values, ""
}

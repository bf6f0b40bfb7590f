package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Snowflake is a platform ID. Older state files wrote IDs as JSON numbers, so
// both numbers and strings are accepted; it always encodes as a string.
type Snowflake string

func (s *Snowflake) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Snowflake(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("snowflake: %w", err)
	}
	*s = Snowflake(num.String())
	return nil
}

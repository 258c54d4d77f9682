package audit

import (
	"encoding/json"
	"strconv"
)

// mustJSON marshals a value known to always succeed (plain structs of
// strings/ints), panicking only on a programming error.
func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic("audit: unexpected marshal failure: " + err.Error())
	}
	return data
}

func itoa(n uint64) string {
	return strconv.FormatUint(n, 10)
}

package application

import (
	"encoding/json"
	"strings"
)

// ParseFixReply extracts the file-path to content mapping from a completion
// reply. Models sometimes wrap the object in prose or code fences, so every
// '{' is tried as the start of a JSON object and the last one that decodes
// into map[string]string wins. Input consumed by a successful decode is not
// rescanned, which keeps braces inside file contents from matching. A reply
// with no such object yields nil.
func ParseFixReply(reply string) map[string]string {
	var last map[string]string

	for i := 0; i < len(reply); {
		j := strings.IndexByte(reply[i:], '{')
		if j < 0 {
			break
		}
		start := i + j

		dec := json.NewDecoder(strings.NewReader(reply[start:]))
		var files map[string]string
		if err := dec.Decode(&files); err == nil && files != nil {
			last = files
			i = start + int(dec.InputOffset())
			continue
		}
		i = start + 1
	}

	return last
}

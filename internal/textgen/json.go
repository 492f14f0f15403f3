package textgen

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Unfence extracts the body of a ```json or ``` fenced block. Text without a
// fence is returned trimmed.
func Unfence(s string) string {
	for _, open := range []string{"```json", "```"} {
		i := strings.Index(s, open)
		if i < 0 {
			continue
		}
		rest := s[i+len(open):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(s)
}

// DecodeJSON unmarshals a model reply into v. The reply may be wrapped in a
// markdown fence; syntax errors are repaired once before giving up.
func DecodeJSON(reply string, v any) error {
	body := Unfence(reply)
	err := json.Unmarshal([]byte(body), v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	fixed, rerr := jsonrepair.JSONRepair(body)
	if rerr != nil {
		return errors.Join(err, rerr)
	}
	return json.Unmarshal([]byte(fixed), v)
}

package textgen

import "testing"

func TestUnfence(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"앞말 ```\n{\"a\":1}``` 뒷말", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
		{"```json\n{\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := Unfence(tt.in); got != tt.want {
			t.Errorf("Unfence(%q): want %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var v struct {
		Name  string   `json:"name"`
		Likes []string `json:"likes"`
	}
	if err := DecodeJSON("```json\n{\"name\": \"카카시\", \"likes\": [\"라면\",],}\n```", &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Name != "카카시" || len(v.Likes) != 1 {
		t.Fatalf("decoded: got %+v", v)
	}

	var n struct{ N int }
	if err := DecodeJSON(`{"N": "not a number"}`, &n); err == nil {
		t.Fatal("type errors must not be repaired away")
	}
}

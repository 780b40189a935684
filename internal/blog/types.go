// Package blog holds the blog post data model shared by the client, the query
// layer and the development backend.
package blog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Categories is the fixed list offered when authoring a post.
var Categories = []string{"FINANCE", "TECH", "CAREER", "EDUCATION", "REGULATIONS", "LIFESTYLE"}

const wordsPerMinute = 200

// ID identifies a post. Backends send either JSON numbers or strings; both
// decode to the same canonical string.
type ID string

func (id ID) String() string { return string(id) }

// IsZero reports whether no id is set.
func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("blog id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// UnmarshalYAML accepts the same scalar forms as UnmarshalJSON, so seed files
// may write ids as 3 or "3".
func (id *ID) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("blog id must be a scalar, got %v at line %d", n.Tag, n.Line)
	}
	if n.Tag == "!!null" {
		*id = ""
		return nil
	}
	*id = ID(strings.TrimSpace(n.Value))
	return nil
}

// Post matches the backend's JSON shape.
type Post struct {
	ID          ID       `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Category    []string `json:"category" yaml:"category"`
	Description string   `json:"description" yaml:"description"`
	Date        string   `json:"date" yaml:"date"`
	CoverImage  string   `json:"coverImage,omitempty" yaml:"coverImage,omitempty"`
	Content     string   `json:"content" yaml:"content"`
}

// CreatePayload is a Post without the server-assigned id and date.
type CreatePayload struct {
	Title       string   `json:"title"`
	Category    []string `json:"category"`
	Description string   `json:"description"`
	CoverImage  string   `json:"coverImage,omitempty"`
	Content     string   `json:"content"`
}

// Published parses Date. RFC 3339 timestamps and plain dates are accepted.
func (p Post) Published() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, p.Date); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, p.Date)
}

// PrimaryCategory returns the first category or "GENERAL".
func (p Post) PrimaryCategory() string {
	if len(p.Category) == 0 || p.Category[0] == "" {
		return "GENERAL"
	}
	return p.Category[0]
}

// CategoryLabel joins all categories with " & ", or returns "General".
func (p Post) CategoryLabel() string {
	if len(p.Category) == 0 {
		return "General"
	}
	return strings.Join(p.Category, " & ")
}

// ReadTime estimates reading minutes at 200 words per minute. Empty content
// still reads in one minute.
func ReadTime(content string) int {
	words := len(strings.Fields(content))
	if words == 0 {
		words = 1
	}
	return int(math.Ceil(float64(words) / wordsPerMinute))
}

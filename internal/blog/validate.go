package blog

import (
	"net/url"
	"strings"
)

// ValidationError lists every problem found in a payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid blog: " + strings.Join(e.Problems, "; ")
}

// Validate checks required fields before anything is sent to a backend.
func (p CreatePayload) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Title) == "" {
		problems = append(problems, "title is required")
	}
	if !hasCategory(p.Category) {
		problems = append(problems, "at least one category is required")
	}
	if strings.TrimSpace(p.Description) == "" {
		problems = append(problems, "description is required")
	}
	if strings.TrimSpace(p.Content) == "" {
		problems = append(problems, "content is required")
	}
	if p.CoverImage != "" {
		u, err := url.Parse(p.CoverImage)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, "coverImage must be an http(s) URL")
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func hasCategory(cats []string) bool {
	for _, c := range cats {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return false
}

// IsKnownCategory reports whether c is one of Categories, ignoring case.
func IsKnownCategory(c string) bool {
	for _, k := range Categories {
		if strings.EqualFold(k, strings.TrimSpace(c)) {
			return true
		}
	}
	return false
}

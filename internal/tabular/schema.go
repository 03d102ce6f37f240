package tabular

import (
	"fmt"
	"sort"
	"strings"
)

// Contract is the per-entity-type header contract. Required headers must
// all be present; headers that are neither required nor optional reject
// the whole file. Matching is order-independent and case-insensitive.
type Contract struct {
	Required []string
	Optional []string
}

// SchemaError reports every offending header at once so an operator can
// fix the file in a single pass.
type SchemaError struct {
	Missing    []string
	Unexpected []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required headers: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected headers: %s", strings.Join(e.Unexpected, ", ")))
	}
	if len(parts) == 0 {
		return "invalid header row"
	}
	return strings.Join(parts, "; ")
}

// Validate checks the file's header set against the contract. The schema
// is deliberately fail-closed: extraneous columns reject the file rather
// than being silently ignored.
func (c Contract) Validate(headers []string) error {
	allowed := make(map[string]bool, len(c.Required)+len(c.Optional))
	for _, h := range c.Required {
		allowed[strings.ToLower(h)] = true
	}
	for _, h := range c.Optional {
		allowed[strings.ToLower(h)] = true
	}

	present := make(map[string]bool, len(headers))
	var unexpected []string
	for _, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" {
			continue
		}
		present[key] = true
		if !allowed[key] {
			unexpected = append(unexpected, h)
		}
	}

	var missing []string
	for _, h := range c.Required {
		if !present[strings.ToLower(h)] {
			missing = append(missing, h)
		}
	}

	if len(missing) > 0 || len(unexpected) > 0 {
		sort.Strings(missing)
		sort.Strings(unexpected)
		return &SchemaError{Missing: missing, Unexpected: unexpected}
	}
	return nil
}

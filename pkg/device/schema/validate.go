// Package schema checks decoded JSON payloads against JSON Schema
// documents.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalid is returned for every payload that fails its schema.
var ErrInvalid = errors.New("payload does not match schema")

// Validator compiles each schema document once and reuses it.
type Validator struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

// NewValidator returns a Validator with nothing compiled yet.
func NewValidator() *Validator {
	return &Validator{compiled: make(map[string]*jsonschema.Schema)}
}

// DecodeJSON decodes data the way the validator expects, with numbers
// kept as json.Number.
func DecodeJSON(data []byte) (any, error) {
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

// Validate checks payload, a value returned by DecodeJSON, against doc. An
// empty or null doc accepts everything. Failures wrap ErrInvalid and name
// the offending locations but never echo payload values, which may hold
// secrets.
func (v *Validator) Validate(doc json.RawMessage, payload any) error {
	switch strings.TrimSpace(string(doc)) {
	case "", "{}", "null":
		return nil
	}

	s, err := v.lookup(doc)
	if err != nil {
		return err
	}

	err = s.Validate(payload)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		return fmt.Errorf("%w at %s", ErrInvalid, strings.Join(locations(ve), ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalid, err)
}

func (v *Validator) lookup(doc json.RawMessage) (*jsonschema.Schema, error) {
	key := string(doc)

	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.compiled[key]; ok {
		return s, nil
	}

	parsed, err := DecodeJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("payload.json", parsed); err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	s, err := c.Compile("payload.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	v.compiled[key] = s
	return s, nil
}

// locations lists the instance pointers of the leaf failures.
func locations(ve *jsonschema.ValidationError) []string {
	seen := map[string]bool{}
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			seen["/"+strings.Join(e.InstanceLocation, "/")] = true
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	out := make([]string, 0, len(seen))
	for loc := range seen {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

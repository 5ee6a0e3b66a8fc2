package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/urmzd/doorlock/pkg/device/schema"
)

// Schema is the JSON Schema every decrypted command must satisfy. The
// action itself is not enumerated here so that unknown actions are
// reported after authentication rather than as parse errors. Update
// fields are constrained only for the action that uses them.
var Schema = json.RawMessage(`{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["command", "timestamp", "password"],
	"properties": {
		"command": {"type": "string", "minLength": 1},
		"timestamp": {"type": ["string", "number"]},
		"password": {"type": "string"},
		"doorId": {"type": "string"},
		"newSSID": {"type": "string"},
		"newPassword": {"type": "string"},
		"newServerAddress": {"type": "string"},
		"newPresetPassword": {"type": "string"}
	},
	"allOf": [
		{
			"if": {"required": ["command"], "properties": {"command": {"pattern": "^(?i)updatewifi$"}}},
			"then": {
				"required": ["newSSID", "newPassword"],
				"properties": {
					"newSSID": {"minLength": 1, "maxLength": 32},
					"newPassword": {"maxLength": 63}
				}
			}
		},
		{
			"if": {"required": ["command"], "properties": {"command": {"pattern": "^(?i)updateserver$"}}},
			"then": {
				"required": ["newServerAddress"],
				"properties": {"newServerAddress": {"minLength": 1}}
			}
		},
		{
			"if": {"required": ["command"], "properties": {"command": {"pattern": "^(?i)updatepresetpassword$"}}},
			"then": {
				"required": ["newPresetPassword"],
				"properties": {"newPresetPassword": {"minLength": 1}}
			}
		}
	]
}`)

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e12

var errBadTimestamp = errors.New("bad timestamp")

// Command is a decrypted, structurally valid command. It is consumed once
// and must never be logged: it carries the password.
type Command struct {
	Name              string
	Action            Action
	RawTimestamp      any
	Password          string
	DoorID            string
	NewSSID           string
	NewPassword       string
	NewServerAddress  string
	NewPresetPassword string
}

// Parse decodes plaintext and validates it against Schema.
func Parse(v *schema.Validator, plaintext []byte) (*Command, error) {
	doc, err := schema.DecodeJSON(plaintext)
	if err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	if err := v.Validate(Schema, doc); err != nil {
		return nil, fmt.Errorf("validate command: %w", err)
	}

	fields, ok := doc.(map[string]any)
	if !ok {
		return nil, errors.New("command is not an object")
	}

	str := func(key string) string {
		s, _ := fields[key].(string)
		return s
	}

	cmd := &Command{
		Name:              str("command"),
		RawTimestamp:      fields["timestamp"],
		Password:          str("password"),
		DoorID:            str("doorId"),
		NewSSID:           str("newSSID"),
		NewPassword:       str("newPassword"),
		NewServerAddress:  str("newServerAddress"),
		NewPresetPassword: str("newPresetPassword"),
	}
	cmd.Action = ParseAction(cmd.Name)
	return cmd, nil
}

// Timestamp interprets the raw timestamp as an ISO-8601 instant or as
// epoch seconds (milliseconds when the value exceeds 1e12).
func (c *Command) Timestamp() (time.Time, error) {
	switch v := c.RawTimestamp.(type) {
	case json.Number:
		return parseEpoch(v.String())
	case float64:
		return epochToTime(v)
	case string:
		return parseTimestampString(v)
	default:
		return time.Time{}, errBadTimestamp
	}
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z0700",
}

func parseTimestampString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errBadTimestamp
	}
	if t, err := parseEpoch(s); err == nil {
		return t, nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errBadTimestamp
}

func parseEpoch(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, errBadTimestamp
	}
	return epochToTime(f)
}

func epochToTime(f float64) (time.Time, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return time.Time{}, errBadTimestamp
	}
	if f >= epochMillisThreshold {
		f /= 1000
	}
	// Beyond year 9999 the value cannot be a real clock reading.
	if f > 253402300799 {
		return time.Time{}, errBadTimestamp
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}

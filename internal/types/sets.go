package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions. All JSONB-backed set types must implement
// both sql.Scanner and driver.Valuer; this catches signature drift at compile
// time rather than at runtime. Scan is on pointer receivers; Value is on value
// receivers.
var (
	_ sql.Scanner   = (*ChannelSet)(nil)
	_ driver.Valuer = ChannelSet(nil)
	_ sql.Scanner   = (*RoleSet)(nil)
	_ driver.Valuer = RoleSet(nil)
	_ sql.Scanner   = (*TypeFilter)(nil)
	_ driver.Valuer = TypeFilter(nil)
)

// scanJSONB scans a JSONB database value into a Go pointer. It handles nil
// values, []byte, and string representations from different drivers.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// valueJSONB converts a Go value to a JSONB-compatible driver.Value.
func valueJSONB(v interface{}) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// ---------------------------------------------------------------------------
// ChannelSet
// ---------------------------------------------------------------------------

// ChannelSet is the decoded form of a rule's channels column. Rules store
// channels as a JSON array; the set is decoded and validated once at the
// storage boundary so business logic never sees malformed channel names.
type ChannelSet []Channel

// Scan implements sql.Scanner.
func (cs *ChannelSet) Scan(value interface{}) error {
	if value == nil {
		*cs = nil
		return nil
	}
	if err := scanJSONB(cs, value); err != nil {
		return err
	}
	return cs.Validate()
}

// Value implements driver.Valuer.
func (cs ChannelSet) Value() (driver.Value, error) {
	return valueJSONB(cs)
}

// Validate rejects unknown channel variants and duplicates. Malformed rows
// are refused here, at the single decode site.
func (cs ChannelSet) Validate() error {
	seen := make(map[Channel]bool, len(cs))
	for _, c := range cs {
		if !c.Valid() {
			return fmt.Errorf("channel set: unknown channel %q", string(c))
		}
		if seen[c] {
			return fmt.Errorf("channel set: duplicate channel %q", string(c))
		}
		seen[c] = true
	}
	return nil
}

// Contains reports whether the set includes the given channel.
func (cs ChannelSet) Contains(c Channel) bool {
	for _, v := range cs {
		if v == c {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// RoleSet
// ---------------------------------------------------------------------------

// RoleSet is the decoded form of a rule's recipient_roles column: the role
// tags whose members receive the rule's notifications.
type RoleSet []string

// Scan implements sql.Scanner.
func (rs *RoleSet) Scan(value interface{}) error {
	if value == nil {
		*rs = nil
		return nil
	}
	return scanJSONB(rs, value)
}

// Value implements driver.Valuer.
func (rs RoleSet) Value() (driver.Value, error) {
	return valueJSONB(rs)
}

// Contains reports whether the set includes the given role tag.
func (rs RoleSet) Contains(role string) bool {
	for _, v := range rs {
		if v == role {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// TypeFilter
// ---------------------------------------------------------------------------

// TypeFilter is a chat binding's notification-type filter. An empty filter
// admits every type.
type TypeFilter []NotificationType

// Scan implements sql.Scanner.
func (tf *TypeFilter) Scan(value interface{}) error {
	if value == nil {
		*tf = nil
		return nil
	}
	return scanJSONB(tf, value)
}

// Value implements driver.Valuer.
func (tf TypeFilter) Value() (driver.Value, error) {
	return valueJSONB(tf)
}

// Allows reports whether the filter admits the given notification type.
func (tf TypeFilter) Allows(t NotificationType) bool {
	if len(tf) == 0 {
		return true
	}
	for _, v := range tf {
		if v == t {
			return true
		}
	}
	return false
}

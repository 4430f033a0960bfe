package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Target is the destination of a message: either the group channel or a single user.
// The zero value is the group channel.
type Target struct {
	userID string
}

// GroupTarget addresses the group channel.
func GroupTarget() Target {
	return Target{}
}

// DirectTo addresses a single user. An empty id yields the group channel.
func DirectTo(userID string) Target {
	return Target{userID: userID}
}

// IsGroup reports whether the target is the group channel.
func (t Target) IsGroup() bool {
	return t.userID == ""
}

// UserID returns the receiving user, or "" for the group channel.
func (t Target) UserID() string {
	return t.userID
}

func (t Target) String() string {
	if t.IsGroup() {
		return "group"
	}
	return "direct:" + t.userID
}

// MarshalJSON encodes the group channel as null.
func (t Target) MarshalJSON() ([]byte, error) {
	if t.IsGroup() {
		return []byte("null"), nil
	}
	return json.Marshal(t.userID)
}

// UnmarshalJSON accepts null, "" or a user id string.
func (t *Target) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = GroupTarget()
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("receiver: %w", err)
	}
	*t = DirectTo(id)
	return nil
}

// Value stores the group channel as SQL NULL.
func (t Target) Value() (driver.Value, error) {
	if t.IsGroup() {
		return nil, nil
	}
	return t.userID, nil
}

// Scan reads a nullable receiver column.
func (t *Target) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = GroupTarget()
	case string:
		*t = DirectTo(v)
	case []byte:
		*t = DirectTo(string(v))
	default:
		return fmt.Errorf("receiver: unsupported type %T", src)
	}
	return nil
}

// Package record defines the two shapes a message document takes inside the service:
// the raw, schema-less form it is stored in and the canonical form handed to callers.
// Normalize is the only way to get from one to the other.
package record

import (
	"fmt"
	"reflect"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IdentityKey is the reserved key holding the store-assigned identifier.
const IdentityKey = "_id"

// Canonical field names of a message.
const (
	FieldDate    = "date"
	FieldMessage = "message"
	FieldType    = "type"
)

// RequiredFields lists the canonical fields a record needs to be returned by a read path.
var RequiredFields = []string{FieldDate, FieldMessage, FieldType}

// Field is a single key/value pair of a stored document.
type Field struct {
	Key   string
	Value any
}

// RawRecord is a document exactly as the store returned it: ordered, any key casing,
// identity under IdentityKey.
type RawRecord []Field

// Get returns the value stored under the exact key.
func (r RawRecord) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether the exact key is present.
func (r RawRecord) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// ID returns the identity exactly as stored. A missing or null identity reports false.
func (r RawRecord) ID() (any, bool) {
	v, ok := r.Get(IdentityKey)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// WithID returns a copy of the record whose identity is set to id, placed first.
func (r RawRecord) WithID(id any) RawRecord {
	out := make(RawRecord, 0, len(r)+1)
	out = append(out, Field{Key: IdentityKey, Value: id})
	for _, f := range r {
		if f.Key == IdentityKey {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FormatID renders an identity for output: ObjectIDs as 24-char hex, anything else with fmt.Sprint.
func FormatID(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	}
	return fmt.Sprint(id)
}

// IDKey maps an identity onto a comparable string. Kinds never collide, so the string "42"
// and the ObjectID with that hex stay distinct; integers of any width share a key, the way
// MongoDB matches numeric _id values.
func IDKey(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return "oid:" + v.Hex()
	case string:
		return "str:" + v
	case int:
		return "int:" + strconv.FormatInt(int64(v), 10)
	case int32:
		return "int:" + strconv.FormatInt(int64(v), 10)
	case int64:
		return "int:" + strconv.FormatInt(v, 10)
	}
	return fmt.Sprintf("%T:%v", id, id)
}

// Set overwrites the exact key in place, or appends it when absent.
// It reports whether the record content changed.
func (r *RawRecord) Set(key string, value any) bool {
	for i, f := range *r {
		if f.Key == key {
			if reflect.DeepEqual(f.Value, value) {
				return false
			}
			(*r)[i].Value = value
			return true
		}
	}
	*r = append(*r, Field{Key: key, Value: value})
	return true
}

// Clone returns a shallow copy of the record.
func (r RawRecord) Clone() RawRecord {
	if r == nil {
		return nil
	}
	out := make(RawRecord, len(r))
	copy(out, r)
	return out
}

// CanonicalRecord is a normalized document: identity untouched, every other key lowercase.
// ID is nil when the document carries no identity.
type CanonicalRecord struct {
	ID     any
	Fields map[string]any
}

// Missing returns the required fields that are absent or null, in RequiredFields order.
func (c CanonicalRecord) Missing() []string {
	var missing []string
	for _, name := range RequiredFields {
		if v, ok := c.Fields[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// Complete reports whether every required field is present with a non-null value.
func (c CanonicalRecord) Complete() bool {
	return len(c.Missing()) == 0
}

// Message projects the record into the API output shape.
// The second value is false when the record is incomplete.
func (c CanonicalRecord) Message() (Message, bool) {
	if !c.Complete() {
		return Message{}, false
	}
	return Message{
		ID:      FormatID(c.ID),
		Date:    text(c.Fields[FieldDate]),
		Message: text(c.Fields[FieldMessage]),
		Type:    text(c.Fields[FieldType]),
	}, true
}

// Message is the strict output shape of a message record. ID is the FormatID form of the identity.
type Message struct {
	ID      string `json:"_id"`
	Date    string `json:"date"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

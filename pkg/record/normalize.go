package record

import "strings"

// Normalize maps a raw document onto canonical lowercase keys.
//
// The identity is copied unmodified and keys that lowercase to IdentityKey are never
// treated as data. When several keys collapse onto the same lowercase name, a key that
// is already lowercase wins; otherwise the first variant in document order wins.
// Values are never altered. The boolean reports whether all RequiredFields are present
// with non-null values.
func Normalize(raw RawRecord) (CanonicalRecord, bool) {
	out := CanonicalRecord{Fields: make(map[string]any, len(raw))}
	if id, ok := raw.ID(); ok {
		out.ID = id
	}

	exact := make(map[string]bool, len(raw))
	for _, f := range raw {
		canonical := strings.ToLower(f.Key)
		if canonical == IdentityKey {
			continue
		}
		isExact := canonical == f.Key
		if _, seen := out.Fields[canonical]; seen {
			if exact[canonical] || !isExact {
				continue
			}
		}
		out.Fields[canonical] = f.Value
		if isExact {
			exact[canonical] = true
		}
	}
	return out, out.Complete()
}

// Capitalize returns the capitalized-first-letter variant of a canonical field name,
// the casing observed in malformed documents.
func Capitalize(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

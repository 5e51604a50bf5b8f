package kv

// Lookup is the result of reading a key. It distinguishes a missing key
// from a key that is present with a null value.
type Lookup struct {
	found bool
	value *string
}

// NotFound is the lookup of an absent key
func NotFound() Lookup {
	return Lookup{}
}

// FoundWith is the lookup of a present key; value may be nil
func FoundWith(value *string) Lookup {
	return Lookup{found: true, value: value}
}

// Found reports whether the key existed, regardless of its value
func (l Lookup) Found() bool {
	return l.found
}

// Value returns the stored value and whether it was non-null
func (l Lookup) Value() (string, bool) {
	if !l.found || l.value == nil {
		return "", false
	}
	return *l.value, true
}

// Package prefs persists the user's feature toggles and resolves every read to
// a fully populated set, falling back to compiled-in defaults.
package prefs

import (
	"slices"
)

// Key names a togglable feature.
type Key string

// Value is one of a key's allowed tags.
type Value string

const (
	On  Value = "on"
	Off Value = "off"
)

const (
	ViewCountVisibility     Key = "view-count-visibility"
	PromotedPostsVisibility Key = "promoted-posts-visibility"
	WriterMode              Key = "writer-mode"
	SidebarVisibility       Key = "sidebar-visibility"
	NavigationLabels        Key = "navigation-labels"
)

// Set maps keys to values.
type Set map[Key]Value

// Clone returns a copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge overwrites s with the entries of other.
func (s Set) Merge(other Set) {
	for k, v := range other {
		s[k] = v
	}
}

// Definition describes one preference.
type Definition struct {
	Key         Key
	Default     Value
	Allowed     []Value
	Description string
}

// Allows reports whether v is in the definition's closed value set.
func (d Definition) Allows(v Value) bool {
	return slices.Contains(d.Allowed, v)
}

// Schema is the ordered, fixed set of known preferences.
type Schema []Definition

// DefaultSchema enumerates the preferences the engine knows about.
func DefaultSchema() Schema {
	onOff := []Value{On, Off}
	return Schema{
		{Key: ViewCountVisibility, Default: On, Allowed: onOff, Description: "Hide view counts on posts"},
		{Key: PromotedPostsVisibility, Default: On, Allowed: onOff, Description: "Hide promoted posts"},
		{Key: WriterMode, Default: Off, Allowed: onOff, Description: "Show only the timeline"},
		{Key: SidebarVisibility, Default: Off, Allowed: onOff, Description: "Hide the trends sidebar"},
		{Key: NavigationLabels, Default: Off, Allowed: onOff, Description: "Hide navigation labels"},
	}
}

// Lookup returns the definition for k.
func (s Schema) Lookup(k Key) (Definition, bool) {
	for _, d := range s {
		if d.Key == k {
			return d, true
		}
	}
	return Definition{}, false
}

// Keys returns every key in schema order.
func (s Schema) Keys() []Key {
	keys := make([]Key, len(s))
	for i, d := range s {
		keys[i] = d.Key
	}
	return keys
}

// Defaults returns the compiled-in value of every key.
func (s Schema) Defaults() Set {
	out := make(Set, len(s))
	for _, d := range s {
		out[d.Key] = d.Default
	}
	return out
}

// Validate checks partial against the schema.
func (s Schema) Validate(partial Set) error {
	for k, v := range partial {
		d, ok := s.Lookup(k)
		if !ok {
			return &ValidationError{Key: k, Err: ErrUnknownKey}
		}
		if !d.Allows(v) {
			return &ValidationError{Key: k, Value: v, Err: ErrInvalidValue}
		}
	}
	return nil
}

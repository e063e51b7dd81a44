package enums

import "fmt"

// CustomItemKind identifies the configurator that produced a custom cart item.
type CustomItemKind string

const (
	CustomItemKindJacket CustomItemKind = "custom_jacket"
)

var validCustomItemKinds = []CustomItemKind{
	CustomItemKindJacket,
}

// String implements fmt.Stringer.
func (k CustomItemKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known CustomItemKind.
func (k CustomItemKind) IsValid() bool {
	for _, candidate := range validCustomItemKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseCustomItemKind converts raw input into a CustomItemKind.
func ParseCustomItemKind(value string) (CustomItemKind, error) {
	for _, candidate := range validCustomItemKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid custom item kind %q", value)
}

package enums

// AddressMode tells whether shipping fields come from a saved address or manual entry.
type AddressMode string

const (
	AddressModeSaved  AddressMode = "saved"
	AddressModeManual AddressMode = "manual"
)

// String implements fmt.Stringer.
func (m AddressMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known AddressMode.
func (m AddressMode) IsValid() bool {
	return m == AddressModeSaved || m == AddressModeManual
}

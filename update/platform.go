package update

// PlatformInfo is the small boundary interface over device bring-up: the
// platform fields that matter for node info. A concrete implementation is
// an external collaborator; nothing here touches hardware directly.
type PlatformInfo interface {
	Sysname() string
	Machine() string
	Version() string
}

// Rebooter abstracts the device reset the update channel triggers after a
// successful install.
type Rebooter interface {
	Reset()
}

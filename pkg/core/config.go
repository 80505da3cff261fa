package core

type Config struct {
	Dir string // repo root

	Ledger  LedgerConfig
	Restore RestoreConfig
}

type LedgerConfig struct {
	Dir     string
	Backend string // "pebble" (default) or "memory"
}

// RestoreConfig gates the stash/reuse path of the claim state machine.
// With Enabled=false (the default) Restore validates its inputs and fails
// with ErrUnsupported without committing any ledger mutation, and Claim
// never observes a stashed record.
type RestoreConfig struct {
	Enabled bool
}

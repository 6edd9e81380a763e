package models

import (
	"maps"
	"time"
)

// EventKind names the kind of mutation an audit record describes.
type EventKind string

const (
	EventOrganizationRegistered       EventKind = "OrganizationRegistered"
	EventOrganizationModified         EventKind = "OrganizationModified"
	EventOrganizationDeactivated      EventKind = "OrganizationDeactivated"
	EventRegistryOwnershipTransferred EventKind = "RegistryOwnershipTransferred"
	EventLedgerCreated                EventKind = "LedgerCreated"
	EventProductAdded                 EventKind = "ProductAdded"
	EventProductDeactivated           EventKind = "ProductDeactivated"
	EventProcessesUpdated             EventKind = "ProcessesUpdated"
	EventStatusUpdated                EventKind = "StatusUpdated"
	EventRoleGranted                  EventKind = "RoleGranted"
	EventRoleRevoked                  EventKind = "RoleRevoked"
	EventLedgerOwnerUpdated           EventKind = "LedgerOwnerUpdated"
	EventDataRecorded                 EventKind = "DataRecorded"
)

// EventKinds lists every known kind.
var EventKinds = []EventKind{
	EventOrganizationRegistered,
	EventOrganizationModified,
	EventOrganizationDeactivated,
	EventRegistryOwnershipTransferred,
	EventLedgerCreated,
	EventProductAdded,
	EventProductDeactivated,
	EventProcessesUpdated,
	EventStatusUpdated,
	EventRoleGranted,
	EventRoleRevoked,
	EventLedgerOwnerUpdated,
	EventDataRecorded,
}

// Valid reports whether k is a known kind.
func (k EventKind) Valid() bool {
	for _, known := range EventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsLedgerEvent reports whether records of this kind are scoped to a single ledger.
func (k EventKind) IsLedgerEvent() bool {
	switch k {
	case EventProductAdded, EventProductDeactivated, EventProcessesUpdated,
		EventStatusUpdated, EventRoleGranted, EventRoleRevoked, EventLedgerOwnerUpdated,
		EventDataRecorded:
		return true
	}
	return false
}

// Value keys used in Event.Values.
const (
	ValueName          = "name"
	ValueDescription   = "description"
	ValueWallet        = "wallet"
	ValueOrgID         = "org_id"
	ValueOwner         = "owner"
	ValuePreviousOwner = "previous_owner"
	ValueRegistryOwner = "registry_owner"
	ValueCapability    = "capability"
	ValueProcesses     = "processes"
	ValueStatus        = "status"
	ValueReactivated   = "reactivated"
	ValueData          = "data"
)

// Event is an accepted mutation before the audit log has sequenced it.
//
// Key holds the primary key touched (organization code, product ID,
// identity, or data category) and SubKey the secondary one (batch ID or
// ledger handle).
type Event struct {
	Kind   EventKind         `json:"kind"`
	Ledger string            `json:"ledger,omitempty"`
	Key    string            `json:"key"`
	SubKey string            `json:"sub_key,omitempty"`
	Values map[string]string `json:"values,omitempty"`
	Caller Identity          `json:"caller"`
}

// AuditRecord is an immutable, sequenced, hash chained audit log entry.
type AuditRecord struct {
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Event
	PrevHash string `json:"prev_hash"`
	Hash     string `json:"hash"`
}

// Clone returns a deep copy.
func (r *AuditRecord) Clone() *AuditRecord {
	c := *r
	c.Values = maps.Clone(r.Values)
	return &c
}

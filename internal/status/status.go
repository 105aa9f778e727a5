// Package status defines the closed status sets of the case-management
// entities and the transitions allowed between their members.
package status

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownStatus     = errors.New("unknown status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Machine is a closed set of states with an explicit transition table.
type Machine struct {
	name    string
	initial string
	edges   map[string][]string
	// open machines allow any move between members
	open bool
}

// Name identifies the lifecycle, e.g. "appointment".
func (m *Machine) Name() string { return m.name }

// Initial is the state new rows start in.
func (m *Machine) Initial() string { return m.initial }

// Valid reports whether s is a member of the set.
func (m *Machine) Valid(s string) bool {
	_, ok := m.edges[s]
	return ok
}

// States lists the members in lexical order.
func (m *Machine) States() []string {
	out := make([]string, 0, len(m.edges))
	for s := range m.edges {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Check validates a move from one state to another. Staying in the same
// state is always allowed.
func (m *Machine) Check(from, to string) error {
	if !m.Valid(to) {
		return fmt.Errorf("%s status %q: %w", m.name, to, ErrUnknownStatus)
	}
	if from == to {
		return nil
	}
	if !m.Valid(from) {
		return fmt.Errorf("%s status %q: %w", m.name, from, ErrUnknownStatus)
	}
	if m.open {
		return nil
	}
	for _, next := range m.edges[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%s cannot move from %q to %q: %w", m.name, from, to, ErrInvalidTransition)
}

// Terminal reports whether no transition leaves s.
func (m *Machine) Terminal(s string) bool {
	return !m.open && len(m.edges[s]) == 0
}

const (
	CaseOpen       = "open"
	CaseInProgress = "in-progress"
	CaseClosed     = "closed"

	AppointmentPending             = "pending"
	AppointmentConfirmed           = "confirmed"
	AppointmentCancelled           = "cancelled"
	AppointmentRescheduleRequested = "reschedule_requested"

	ConsentPending = "pending"
	ConsentSigned  = "signed"
	ConsentExpired = "expired"

	AidPending           = "pending"
	AidApproved          = "approved"
	AidPartiallyApproved = "partially_approved"
	AidRejected          = "rejected"

	VictimActive   = "active"
	VictimInactive = "inactive"
	VictimPending  = "pending"
)

var (
	Case = &Machine{
		name:    "case",
		initial: CaseOpen,
		edges: map[string][]string{
			CaseOpen:       {CaseInProgress, CaseClosed},
			CaseInProgress: {CaseOpen, CaseClosed},
			CaseClosed:     {CaseOpen},
		},
	}

	Appointment = &Machine{
		name:    "appointment",
		initial: AppointmentPending,
		edges: map[string][]string{
			AppointmentPending:             {AppointmentConfirmed, AppointmentCancelled},
			AppointmentConfirmed:           {AppointmentRescheduleRequested, AppointmentCancelled},
			AppointmentRescheduleRequested: {AppointmentConfirmed, AppointmentCancelled},
			AppointmentCancelled:           nil,
		},
	}

	Consent = &Machine{
		name:    "consent",
		initial: ConsentPending,
		edges: map[string][]string{
			ConsentPending: {ConsentSigned, ConsentExpired},
			ConsentSigned:  {ConsentExpired},
			ConsentExpired: nil,
		},
	}

	Aid = &Machine{
		name:    "financial aid",
		initial: AidPending,
		edges: map[string][]string{
			AidPending:           {AidApproved, AidPartiallyApproved, AidRejected},
			AidApproved:          nil,
			AidPartiallyApproved: nil,
			AidRejected:          nil,
		},
	}

	Victim = &Machine{
		name:    "victim",
		initial: VictimPending,
		open:    true,
		edges: map[string][]string{
			VictimActive:   nil,
			VictimInactive: nil,
			VictimPending:  nil,
		},
	}
)

// Package sbc talks to the telephony gateway (SBC) hosts: a REST/XML
// client per host, and an updater that fans a number out to every
// configured host and reports independent per-host outcomes.
package sbc

import "time"

// OutcomeStatus classifies a single host interaction.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeError   OutcomeStatus = "error"
)

// Outcome is the per-host result of a push or status query. A failure on
// one host never affects the outcome reported for another.
type Outcome struct {
	Host    string        `json:"host"`
	Status  OutcomeStatus `json:"status"`
	Number  string        `json:"number,omitempty"`
	Message string        `json:"message"`
	At      time.Time     `json:"at"`
}

// OK reports whether the interaction succeeded.
func (o Outcome) OK() bool {
	return o.Status == OutcomeSuccess
}

// AllSuccessful reports whether every outcome in the slice succeeded.
func AllSuccessful(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if !o.OK() {
			return false
		}
	}
	return len(outcomes) > 0
}

// FailedHosts returns the host names of all error outcomes.
func FailedHosts(outcomes []Outcome) []string {
	var hosts []string
	for _, o := range outcomes {
		if !o.OK() {
			hosts = append(hosts, o.Host)
		}
	}
	return hosts
}

// Package vocab translates controlled-vocabulary codes between the source
// and target Jira instances' taxonomies.
//
// Urgency, impact, and priority are soft fields: an unknown source code
// maps to "absent" and the field is omitted from the create payload.
// Service and team are mandatory classification fields: an unknown value
// is an error, because it signals a business category that must not be
// dropped silently.
package vocab

import "fmt"

// Target option ids for the urgency field (customfield_10043).
const (
	UrgencyCritical = "10020"
	UrgencyHigh     = "10021"
	UrgencyMedium   = "10022"
	UrgencyLow      = "10023"
)

// Target option ids for the impact field (customfield_10004).
const (
	ImpactExtensive   = "10000"
	ImpactSignificant = "10001"
	ImpactModerate    = "10002"
	ImpactMinor       = "10003"
)

// Target priority ids.
const (
	PriorityP1 = "10003"
	PriorityP2 = "10002"
	PriorityP3 = "10001"
	PriorityP4 = "10000"
	PriorityP5 = "10004"
)

var urgencyByID = map[string]string{
	"618442": UrgencyHigh,
	"618438": UrgencyMedium,
	"618439": UrgencyLow,
}

var impactByID = map[string]string{
	"618439": ImpactSignificant,
	"618438": ImpactModerate,
	"618437": ImpactMinor,
}

var priorityByID = map[string]string{
	"1": PriorityP5,
	"2": PriorityP4,
	"3": PriorityP3,
	"4": PriorityP2,
	"5": PriorityP5,
}

var serviceByLabel = map[string]string{
	"INDRA - Operaciones - BI": "10230",
	"SOAINT":                   "10231",
	"Data Platform":            "10232",
	"Billing":                  "10233",
	"Service Desk":             "10234",
}

var teamByStatus = map[string]string{
	"Abierto":     "19",
	"Open":        "19",
	"En curso":    "20",
	"In Progress": "20",
	"Escalado":    "21",
	"Escalated":   "21",
	"Resuelto":    "22",
	"Resolved":    "22",
	"Cerrado":     "22",
	"Closed":      "22",
}

// Urgency maps a source urgency option id to the target option id.
// Unknown or empty ids report absent.
func Urgency(id string) (string, bool) {
	v, ok := urgencyByID[id]
	return v, ok
}

// Impact maps a source impact option id to the target option id.
func Impact(id string) (string, bool) {
	v, ok := impactByID[id]
	return v, ok
}

// Priority maps a source priority id to the target priority id.
func Priority(id string) (string, bool) {
	v, ok := priorityByID[id]
	return v, ok
}

// Service maps a source service label to the target service option id.
func Service(label string) (string, error) {
	if v, ok := serviceByLabel[label]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unmapped service %q", label)
}

// Team maps a source status name to the target team id.
func Team(status string) (string, error) {
	if v, ok := teamByStatus[status]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unmapped team for status %q", status)
}

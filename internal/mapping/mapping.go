// Package mapping converts source tickets into target-instance drafts.
package mapping

import (
	"fmt"

	"github.com/dt-pm-tools/jira-bridge/internal/adf"
	"github.com/dt-pm-tools/jira-bridge/internal/jira"
	"github.com/dt-pm-tools/jira-bridge/internal/vocab"
)

// Target-instance constants for migrated incidents.
const (
	TargetProjectKey = "SPT"
	IncidentTypeID   = "10146"
	OrganizationID   = "100"
)

// Map translates one source ticket into a target draft. The only error
// path is an unmapped mandatory vocabulary value (service or team);
// optional vocabulary fields are omitted when unrecognized.
func Map(src jira.SourceTicket) (jira.Draft, error) {
	serviceID, err := vocab.Service(src.Fields.Service)
	if err != nil {
		return jira.Draft{}, fmt.Errorf("mapping ticket %s: %w", src.Key, err)
	}

	if src.Fields.Status == nil {
		return jira.Draft{}, fmt.Errorf("mapping ticket %s: missing status", src.Key)
	}
	teamID, err := vocab.Team(src.Fields.Status.Name)
	if err != nil {
		return jira.Draft{}, fmt.Errorf("mapping ticket %s: %w", src.Key, err)
	}

	fields := jira.DraftFields{
		Project:       jira.Project{Key: TargetProjectKey},
		IssueType:     jira.IssueType{ID: IncidentTypeID},
		Summary:       fmt.Sprintf("|Key:%s| - | %s |", src.Key, src.Fields.Summary),
		Description:   description(src),
		Organizations: []jira.FieldID{{ID: OrganizationID}},
		Services:      []jira.FieldID{{ID: serviceID}},
		Team:          &jira.FieldID{ID: teamID},
		Environment:   src.Fields.Environment,
	}

	if src.Fields.Urgency != nil {
		if id, ok := vocab.Urgency(src.Fields.Urgency.ID); ok {
			fields.Urgency = &jira.FieldID{ID: id}
		}
	}
	if src.Fields.Impact != nil {
		if id, ok := vocab.Impact(src.Fields.Impact.ID); ok {
			fields.Impact = &jira.FieldID{ID: id}
		}
	}
	if src.Fields.Priority != nil {
		if id, ok := vocab.Priority(src.Fields.Priority.ID); ok {
			fields.Priority = &jira.FieldID{ID: id}
		}
	}

	return jira.Draft{Fields: fields}, nil
}

// description sanitizes the source document, falling back to the fixed
// placeholder so the create call never carries an empty description.
func description(src jira.SourceTicket) *adf.Node {
	if doc := adf.Sanitize(src.Fields.Description); doc != nil {
		return doc
	}
	return adf.DefaultDescription()
}

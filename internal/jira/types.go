package jira

import (
	"encoding/json"

	"github.com/dt-pm-tools/jira-bridge/internal/adf"
)

// SourceTicket represents an incident ticket as returned by the source
// instance's search endpoint.
type SourceTicket struct {
	ID     string       `json:"id"`
	Key    string       `json:"key"`
	Fields SourceFields `json:"fields"`
}

// SourceFields contains the projected fields of a source ticket.
type SourceFields struct {
	Project     *Project        `json:"project,omitempty"`
	IssueType   *IssueType      `json:"issuetype,omitempty"`
	Summary     string          `json:"summary"`
	Status      *Status         `json:"status,omitempty"`
	Priority    *Option         `json:"priority,omitempty"`
	Description json.RawMessage `json:"description,omitempty"`
	Environment string          `json:"environment,omitempty"`
	Updated     string          `json:"updated,omitempty"`

	// Source-instance custom fields.
	Urgency     *Option      `json:"customfield_13269,omitempty"`
	Impact      *Option      `json:"customfield_10246,omitempty"`
	Service     string       `json:"customfield_16907,omitempty"`
	Attachments []Attachment `json:"attachment,omitempty"`
}

// Project identifies a Jira project.
type Project struct {
	ID  string `json:"id,omitempty"`
	Key string `json:"key"`
}

// IssueType identifies an issue type.
type IssueType struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Status is a workflow status.
type Status struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Option is a select-field option carrying an id.
type Option struct {
	ID    string `json:"id"`
	Value string `json:"value,omitempty"`
}

// Attachment is the metadata of one attached file.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Content  string `json:"content,omitempty"` // download URL on the source instance
}

// User is a Jira account reference.
type User struct {
	AccountID   string `json:"accountId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Comment is a single issue comment.
type Comment struct {
	ID      string          `json:"id,omitempty"`
	Author  *User           `json:"author,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
	Created string          `json:"created,omitempty"`
}

// commentsResponse wraps GET issue/<id>/comment.
type commentsResponse struct {
	Comments []Comment `json:"comments"`
}

// commentPayload is the body of POST issue/<id>/comment.
type commentPayload struct {
	Body *adf.Node `json:"body"`
}

// Draft is the identity-free payload accepted by the target create
// endpoint. Optional fields are present-or-omitted, never null, so the
// target's schema validation does not reject the payload.
type Draft struct {
	Fields DraftFields `json:"fields"`
}

// DraftFields holds the target instance's field taxonomy.
type DraftFields struct {
	Project     Project   `json:"project"`
	IssueType   IssueType `json:"issuetype"`
	Summary     string    `json:"summary"`
	Description *adf.Node `json:"description"`

	Urgency       *FieldID  `json:"customfield_10043,omitempty"`
	Impact        *FieldID  `json:"customfield_10004,omitempty"`
	Organizations []FieldID `json:"customfield_10002,omitempty"`
	Services      []FieldID `json:"customfield_10044,omitempty"`
	Team          *FieldID  `json:"customfield_10001,omitempty"`
	Priority      *FieldID  `json:"priority,omitempty"`
	Environment   string    `json:"environment,omitempty"`
}

// FieldID wraps an option id for fields set by id reference.
type FieldID struct {
	ID string `json:"id"`
}

// Created is the identity pair returned by the create endpoint.
type Created struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// searchRequest is the body of POST search/jql.
type searchRequest struct {
	JQL           string   `json:"jql"`
	MaxResults    int      `json:"maxResults"`
	Fields        []string `json:"fields"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

// searchResponse is one page of a token-paginated search. A missing
// nextPageToken means the page is the last one even when isLast is unset.
type searchResponse struct {
	Issues        []SourceTicket `json:"issues"`
	NextPageToken string         `json:"nextPageToken"`
	IsLast        bool           `json:"isLast"`
}

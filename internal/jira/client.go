// Package jira is the gateway to the two Jira Cloud instances: paginated
// discovery and bulk reads against the source, creates, updates, comments
// and attachment uploads against the target.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dt-pm-tools/jira-bridge/internal/adf"
)

const (
	searchPath = "/rest/api/3/search/jql"
	issuePath  = "/rest/api/3/issue"

	// maxResults is the page size requested from search/jql.
	maxResults = 1000

	// chunkSize bounds the number of ids per bulk-fetch JQL clause so the
	// request body stays within what the API tolerates.
	chunkSize = 200
)

// discoveryJQL scopes discovery to the incident project and the service
// labels this pipeline is responsible for. The cutoff date is
// interpolated as "updated at or after".
const discoveryJQL = `project = INC AND (customfield_13272 = "INDRA - Operaciones - BI" OR customfield_13272 = SOAINT) AND updated >= "%s" ORDER BY updated DESC`

// searchFields is the projection requested when fetching full tickets.
var searchFields = []string{
	"id",
	"project",
	"issuetype",
	"summary",
	"priority",
	"description",
	"parent",
	"reporter",
	"assignee",
	"environment",
	"customfield_13269",
	"customfield_10246",
	"customfield_11795",
	"customfield_10636",
	"customfield_13283",
	"customfield_13274",
	"customfield_14687",
	"attachment",
	"updated",
}

// Client provides authenticated HTTP access to one Jira Cloud instance.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
}

// NewClient creates a client for the given instance and basic-auth pair.
func NewClient(baseURL, email, token string) *Client {
	creds := base64.StdEncoding.EncodeToString([]byte(email + ":" + token))
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: "Basic " + creds,
		httpClient: &http.Client{},
	}
}

// SearchIDs discovers the ids of tickets updated at or after cutoff,
// newest first. Any transport or HTTP failure on any page aborts the
// whole call; no partial list is returned.
func (c *Client) SearchIDs(ctx context.Context, cutoff string) ([]string, error) {
	req := searchRequest{
		JQL:        fmt.Sprintf(discoveryJQL, cutoff),
		MaxResults: maxResults,
		Fields:     []string{"id"},
	}

	var ids []string
	err := c.searchPages(ctx, req, func(page searchResponse) {
		for _, issue := range page.Issues {
			ids = append(ids, issue.ID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("searching ticket ids: %w", err)
	}
	return ids, nil
}

// SearchByIDs fetches full tickets for the given ids. Ids are trimmed,
// restricted to purely numeric values and deduplicated; an empty result
// after validation short-circuits without a network call. Fetches run in
// chunks, each chunk paginated, results concatenated in response order.
func (c *Client) SearchByIDs(ctx context.Context, ids []string) ([]SourceTicket, error) {
	safe := sanitizeIDs(ids)
	if len(safe) == 0 {
		return nil, nil
	}

	var tickets []SourceTicket
	for _, chunk := range chunkIDs(safe, chunkSize) {
		req := searchRequest{
			JQL:        fmt.Sprintf(`id IN (%s) ORDER BY updated DESC`, strings.Join(chunk, ",")),
			MaxResults: maxResults,
			Fields:     searchFields,
		}
		err := c.searchPages(ctx, req, func(page searchResponse) {
			tickets = append(tickets, page.Issues...)
		})
		if err != nil {
			return nil, fmt.Errorf("fetching tickets by id: %w", err)
		}
	}
	return tickets, nil
}

// searchPages walks the cursor protocol: keep requesting while isLast is
// false and a nextPageToken was returned. A missing token is an implicit
// last page.
func (c *Client) searchPages(ctx context.Context, req searchRequest, onPage func(searchResponse)) error {
	for {
		var page searchResponse
		if err := c.doJSON(ctx, http.MethodPost, c.baseURL+searchPath, req, &page); err != nil {
			return err
		}
		onPage(page)

		if page.IsLast || page.NextPageToken == "" {
			return nil
		}
		req.NextPageToken = page.NextPageToken
	}
}

// CreateIssue creates one ticket on this instance.
func (c *Client) CreateIssue(ctx context.Context, draft Draft) (Created, error) {
	var created Created
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+issuePath, draft, &created); err != nil {
		return Created{}, fmt.Errorf("creating issue: %w", err)
	}
	return created, nil
}

// UpdateIssue applies a partial update to the ticket with the given id.
// The response may omit id and key; they fall back to the request's.
func (c *Client) UpdateIssue(ctx context.Context, id string, draft Draft) (Created, error) {
	var updated Created
	url := fmt.Sprintf("%s%s/%s", c.baseURL, issuePath, id)
	if err := c.doJSON(ctx, http.MethodPut, url, draft, &updated); err != nil {
		return Created{}, fmt.Errorf("updating issue %s: %w", id, err)
	}
	if updated.ID == "" {
		updated.ID = id
	}
	return updated, nil
}

// GetComments fetches all comments of the ticket with the given id.
func (c *Client) GetComments(ctx context.Context, id string) ([]Comment, error) {
	var resp commentsResponse
	url := fmt.Sprintf("%s%s/%s/comment", c.baseURL, issuePath, id)
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching comments for %s: %w", id, err)
	}
	return resp.Comments, nil
}

// AddComment posts one comment to the ticket with the given id.
func (c *Client) AddComment(ctx context.Context, id string, body *adf.Node) error {
	url := fmt.Sprintf("%s%s/%s/comment", c.baseURL, issuePath, id)
	if err := c.doJSON(ctx, http.MethodPost, url, commentPayload{Body: body}, nil); err != nil {
		return fmt.Errorf("adding comment to %s: %w", id, err)
	}
	return nil
}

// GetAttachments reads the attachment metadata of the ticket with the
// given id.
func (c *Client) GetAttachments(ctx context.Context, id string) ([]Attachment, error) {
	var issue SourceTicket
	url := fmt.Sprintf("%s%s/%s?fields=attachment", c.baseURL, issuePath, id)
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &issue); err != nil {
		return nil, fmt.Errorf("fetching attachments for %s: %w", id, err)
	}
	return issue.Fields.Attachments, nil
}

// Download streams the content behind an attachment URL. The caller must
// close the returned reader.
func (c *Client) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("jira API returned %d: %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

// UploadAttachment streams one file to the ticket with the given id,
// preserving the original filename.
func (c *Client) UploadAttachment(ctx context.Context, id, filename string, content io.Reader) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("building upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("reading attachment %s: %w", filename, err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("closing upload form: %w", err)
	}

	url := fmt.Sprintf("%s%s/%s/attachments", c.baseURL, issuePath, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("jira API returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// doJSON executes one authenticated JSON request. A non-2xx response is
// an error carrying the response body. out may be nil when the response
// body is irrelevant.
func (c *Client) doJSON(ctx context.Context, method, url string, in, out any) error {
	var bodyReader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("jira API returned %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// sanitizeIDs trims, keeps only purely numeric ids and deduplicates,
// preserving first-seen order.
func sanitizeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || !numeric(id) || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func numeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// chunkIDs splits ids into slices of at most size elements.
func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

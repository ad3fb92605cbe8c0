// Package replicate copies comments and attachments from a migrated
// source ticket to its newly created target ticket. Replication is
// best-effort: every failure is logged and never affects the created
// ticket or sibling copies.
package replicate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dt-pm-tools/jira-bridge/internal/adf"
	"github.com/dt-pm-tools/jira-bridge/internal/jira"
)

// Replicator copies ticket extras between the two instances.
type Replicator struct {
	source *jira.Client
	target *jira.Client
	log    *slog.Logger
}

// New creates a replicator reading from source and writing to target.
func New(source, target *jira.Client, log *slog.Logger) *Replicator {
	return &Replicator{source: source, target: target, log: log}
}

// CopyExtras mirrors comments and attachments from the source ticket to
// the target ticket. The two sub-operations run concurrently, as do the
// individual comment posts and attachment transfers within each.
func (r *Replicator) CopyExtras(ctx context.Context, sourceID, targetID string) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.copyComments(ctx, sourceID, targetID)
	}()
	go func() {
		defer wg.Done()
		r.copyAttachments(ctx, sourceID, targetID)
	}()
	wg.Wait()
}

func (r *Replicator) copyComments(ctx context.Context, sourceID, targetID string) {
	comments, err := r.source.GetComments(ctx, sourceID)
	if err != nil {
		r.log.Error("fetching source comments failed",
			slog.String("sourceId", sourceID),
			slog.String("targetId", targetID),
			slog.Any("error", err))
		return
	}

	var wg sync.WaitGroup
	for _, comment := range comments {
		if len(comment.Body) == 0 {
			continue
		}
		body := adf.Sanitize(comment.Body)
		if body == nil {
			continue
		}
		body.Content = append([]*adf.Node{provenance(comment)}, body.Content...)

		wg.Add(1)
		go func(body *adf.Node) {
			defer wg.Done()
			if err := r.target.AddComment(ctx, targetID, body); err != nil {
				r.log.Error("copying comment failed",
					slog.String("sourceId", sourceID),
					slog.String("targetId", targetID),
					slog.Any("error", err))
			}
		}(body)
	}
	wg.Wait()
}

// provenance is the one-line paragraph prepended to every copied comment,
// naming the original author.
func provenance(comment jira.Comment) *adf.Node {
	author := "Unknown"
	if comment.Author != nil && comment.Author.DisplayName != "" {
		author = comment.Author.DisplayName
	}
	return adf.Paragraph("[Migrated from source Jira - " + author + "]")
}

func (r *Replicator) copyAttachments(ctx context.Context, sourceID, targetID string) {
	attachments, err := r.source.GetAttachments(ctx, sourceID)
	if err != nil {
		r.log.Error("fetching source attachments failed",
			slog.String("sourceId", sourceID),
			slog.String("targetId", targetID),
			slog.Any("error", err))
		return
	}

	var wg sync.WaitGroup
	for _, att := range attachments {
		if att.Content == "" {
			continue
		}
		wg.Add(1)
		go func(att jira.Attachment) {
			defer wg.Done()
			if err := r.copyOneAttachment(ctx, targetID, att); err != nil {
				r.log.Error("copying attachment failed",
					slog.String("sourceId", sourceID),
					slog.String("targetId", targetID),
					slog.String("filename", att.Filename),
					slog.Any("error", err))
			}
		}(att)
	}
	wg.Wait()
}

func (r *Replicator) copyOneAttachment(ctx context.Context, targetID string, att jira.Attachment) error {
	content, err := r.source.Download(ctx, att.Content)
	if err != nil {
		return err
	}
	defer content.Close()
	return r.target.UploadAttachment(ctx, targetID, att.Filename, content)
}

// Package pipeline orchestrates the migration of incident tickets from
// the source Jira instance into the target instance: discovery,
// classification against the relation store, schema mapping, sequential
// create/update, relation persistence and extras replication.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dt-pm-tools/jira-bridge/internal/jira"
	"github.com/dt-pm-tools/jira-bridge/internal/mapping"
	"github.com/dt-pm-tools/jira-bridge/internal/replicate"
	"github.com/dt-pm-tools/jira-bridge/internal/store"
)

// System tags recorded in relation rows.
const (
	SourceSystem = "integratel"
	TargetSystem = "pormel"
)

// Classification partitions a set of source ids by relation-store state.
type Classification struct {
	NewIDs []string `json:"newIds"`
	OldIDs []string `json:"oldIds"`
}

// CreatedTicket is one successfully created target ticket with its source
// identity.
type CreatedTicket struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	SourceID  string `json:"sourceId"`
	SourceKey string `json:"sourceKey"`
}

// UpdatedTicket is one successfully updated target ticket.
type UpdatedTicket struct {
	ID  string `json:"id"`
	Key string `json:"key,omitempty"`
}

// FailedTicket records one ticket that failed mapping or writing. The
// batch continues past it.
type FailedTicket struct {
	SourceID  string `json:"sourceId"`
	SourceKey string `json:"sourceKey,omitempty"`
	Reason    string `json:"reason"`
}

// CreateResult is the outcome of one creation run.
type CreateResult struct {
	Created []CreatedTicket `json:"created"`
	Failed  []FailedTicket  `json:"failed"`
}

// UpdateResult is the outcome of one update run.
type UpdateResult struct {
	Updated []UpdatedTicket `json:"updated"`
	Failed  []FailedTicket  `json:"failed"`
}

// ManageResult combines the creation and update flows of one managed run.
type ManageResult struct {
	Created []CreatedTicket `json:"created"`
	Updated []UpdatedTicket `json:"updated"`
	Failed  []FailedTicket  `json:"failed"`
}

// Pipeline wires the gateway clients, the relation store and the extras
// replicator into the migration flows.
type Pipeline struct {
	source     *jira.Client
	target     *jira.Client
	store      *store.Store
	replicator *replicate.Replicator
	log        *slog.Logger
}

// New composes a pipeline from its collaborators.
func New(source, target *jira.Client, st *store.Store, replicator *replicate.Replicator, log *slog.Logger) *Pipeline {
	return &Pipeline{
		source:     source,
		target:     target,
		store:      st,
		replicator: replicator,
		log:        log,
	}
}

// Classify partitions the given ids into new (no relation row) and old
// (already migrated). The input is deduplicated preserving first-seen
// order; the partition is disjoint and covers the deduplicated input.
func (p *Pipeline) Classify(ctx context.Context, ids []string) (Classification, error) {
	ids = dedupe(ids)

	existing, err := p.store.ExistingSourceIDs(ctx, SourceSystem, ids)
	if err != nil {
		return Classification{}, fmt.Errorf("classifying tickets: %w", err)
	}

	result := Classification{NewIDs: []string{}, OldIDs: []string{}}
	for _, id := range ids {
		if existing[id] {
			result.OldIDs = append(result.OldIDs, id)
		} else {
			result.NewIDs = append(result.NewIDs, id)
		}
	}
	return result, nil
}

// ClassifySince discovers tickets updated at or after the cutoff date and
// classifies them.
func (p *Pipeline) ClassifySince(ctx context.Context, cutoff string) (Classification, error) {
	ids, err := p.source.SearchIDs(ctx, cutoff)
	if err != nil {
		return Classification{}, err
	}
	p.log.Info("discovered tickets", slog.String("since", cutoff), slog.Int("count", len(ids)))
	return p.Classify(ctx, ids)
}

// Create runs the full creation flow over the given source tickets:
// map, create sequentially, persist relations, replicate extras. Mapping
// and creation failures are isolated per ticket; relation-write and
// replication failures are logged only.
func (p *Pipeline) Create(ctx context.Context, tickets []jira.SourceTicket) (CreateResult, error) {
	result := CreateResult{Created: []CreatedTicket{}, Failed: []FailedTicket{}}

	type mappedTicket struct {
		draft     jira.Draft
		sourceID  string
		sourceKey string
	}
	var mapped []mappedTicket
	for _, ticket := range tickets {
		draft, err := mapping.Map(ticket)
		if err != nil {
			p.log.Error("ticket mapping failed",
				slog.String("sourceId", ticket.ID),
				slog.String("sourceKey", ticket.Key),
				slog.Any("error", err))
			result.Failed = append(result.Failed, FailedTicket{
				SourceID: ticket.ID, SourceKey: ticket.Key, Reason: err.Error(),
			})
			continue
		}
		mapped = append(mapped, mappedTicket{draft: draft, sourceID: ticket.ID, sourceKey: ticket.Key})
	}
	if len(mapped) == 0 {
		p.log.Warn("no tickets to create after mapping")
		return result, nil
	}

	for _, m := range mapped {
		created, err := p.target.CreateIssue(ctx, m.draft)
		if err != nil {
			p.log.Error("ticket creation failed",
				slog.String("sourceId", m.sourceID),
				slog.String("sourceKey", m.sourceKey),
				slog.Any("error", err))
			result.Failed = append(result.Failed, FailedTicket{
				SourceID: m.sourceID, SourceKey: m.sourceKey, Reason: err.Error(),
			})
			continue
		}
		result.Created = append(result.Created, CreatedTicket{
			ID: created.ID, Key: created.Key,
			SourceID: m.sourceID, SourceKey: m.sourceKey,
		})
	}

	for _, created := range result.Created {
		err := p.store.Insert(ctx, store.Relation{
			SourceSystem:   SourceSystem,
			SourceIssueID:  created.SourceID,
			SourceIssueKey: created.SourceKey,
			TargetSystem:   TargetSystem,
			TargetIssueID:  created.ID,
			TargetIssueKey: created.Key,
		})
		if err != nil {
			// The target ticket exists either way; a missing relation row
			// is a latent inconsistency to monitor, not a failure.
			p.log.Error("persisting relation failed",
				slog.String("sourceId", created.SourceID),
				slog.String("targetId", created.ID),
				slog.Any("error", err))
		}
	}

	var wg sync.WaitGroup
	for _, created := range result.Created {
		wg.Add(1)
		go func(created CreatedTicket) {
			defer wg.Done()
			p.replicator.CopyExtras(ctx, created.SourceID, created.ID)
		}(created)
	}
	wg.Wait()

	return result, nil
}

// CreateByIDs fetches the given source ids and runs the creation flow.
func (p *Pipeline) CreateByIDs(ctx context.Context, ids []string) (CreateResult, error) {
	if len(ids) == 0 {
		return CreateResult{Created: []CreatedTicket{}, Failed: []FailedTicket{}}, nil
	}
	tickets, err := p.source.SearchByIDs(ctx, ids)
	if err != nil {
		return CreateResult{}, err
	}
	return p.Create(ctx, tickets)
}

// Update runs the update flow for the given ids: classify, keep only the
// already-migrated subset, re-fetch fresh source data, map, resolve
// target ids and apply sequential partial updates. Ids with no relation
// row are skipped with a warning.
func (p *Pipeline) Update(ctx context.Context, ids []string) (UpdateResult, error) {
	result := UpdateResult{Updated: []UpdatedTicket{}, Failed: []FailedTicket{}}

	classified, err := p.Classify(ctx, ids)
	if err != nil {
		return UpdateResult{}, err
	}
	if len(classified.OldIDs) == 0 {
		p.log.Warn("no previously migrated tickets to update", slog.Int("requested", len(ids)))
		return result, nil
	}

	tickets, err := p.source.SearchByIDs(ctx, classified.OldIDs)
	if err != nil {
		return UpdateResult{}, err
	}
	if len(tickets) == 0 {
		p.log.Warn("no ticket data retrieved for update", slog.Int("oldIds", len(classified.OldIDs)))
		return result, nil
	}

	type mappedTicket struct {
		draft     jira.Draft
		sourceID  string
		sourceKey string
	}
	var mapped []mappedTicket
	for _, ticket := range tickets {
		draft, err := mapping.Map(ticket)
		if err != nil {
			p.log.Error("ticket mapping failed during update",
				slog.String("sourceId", ticket.ID),
				slog.String("sourceKey", ticket.Key),
				slog.Any("error", err))
			result.Failed = append(result.Failed, FailedTicket{
				SourceID: ticket.ID, SourceKey: ticket.Key, Reason: err.Error(),
			})
			continue
		}
		mapped = append(mapped, mappedTicket{draft: draft, sourceID: ticket.ID, sourceKey: ticket.Key})
	}
	if len(mapped) == 0 {
		p.log.Warn("no tickets to update after mapping")
		return result, nil
	}

	targets, err := p.store.TargetIDs(ctx, SourceSystem, classified.OldIDs)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("resolving target ids: %w", err)
	}

	for _, m := range mapped {
		targetID, ok := targets[m.sourceID]
		if !ok {
			// Store and search results drifted between classify and
			// resolve; nothing to update for this id.
			p.log.Warn("no target ticket resolved",
				slog.String("sourceId", m.sourceID),
				slog.String("sourceKey", m.sourceKey))
			continue
		}
		updated, err := p.target.UpdateIssue(ctx, targetID, m.draft)
		if err != nil {
			p.log.Error("ticket update failed",
				slog.String("sourceId", m.sourceID),
				slog.String("targetId", targetID),
				slog.Any("error", err))
			result.Failed = append(result.Failed, FailedTicket{
				SourceID: m.sourceID, SourceKey: m.sourceKey, Reason: err.Error(),
			})
			continue
		}
		result.Updated = append(result.Updated, UpdatedTicket{ID: updated.ID, Key: updated.Key})
	}

	return result, nil
}

// Manage discovers tickets updated at or after the cutoff date, then
// creates target tickets for the new ones and updates the already
// migrated ones.
func (p *Pipeline) Manage(ctx context.Context, cutoff string) (ManageResult, error) {
	classified, err := p.ClassifySince(ctx, cutoff)
	if err != nil {
		return ManageResult{}, err
	}

	createResult, err := p.CreateByIDs(ctx, classified.NewIDs)
	if err != nil {
		return ManageResult{}, err
	}

	updateResult, err := p.Update(ctx, classified.OldIDs)
	if err != nil {
		return ManageResult{}, err
	}

	return ManageResult{
		Created: createResult.Created,
		Updated: updateResult.Updated,
		Failed:  append(createResult.Failed, updateResult.Failed...),
	}, nil
}

// dedupe preserves first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

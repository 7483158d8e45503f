package memory

import (
	"context"
	"encoding/json"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"pollwarden/contexts/polling/vote-engine/domain/entities"
	domainerrors "pollwarden/contexts/polling/vote-engine/domain/errors"
	"pollwarden/contexts/polling/vote-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	sequence  int64
	published bool
}

// Store is the in-process adapter used by tests and local runs. Every write
// holds the single mutex for its whole check-and-apply, which gives the same
// atomicity the postgres adapter gets from transactions.
type Store struct {
	mu sync.RWMutex

	votes     map[string]entities.Vote
	slugs     map[string]string
	options   map[string][]entities.VoteOption
	responses map[string]map[string]entities.ResponseSet
	flags     map[string]entities.Flag
	actions   map[string][]entities.ModerationAction
	snapshots map[string]entities.ResultSnapshot
	outbox    map[string]outboxRecord
	sequence  int64

	writeFailure error
}

func NewStore(seed []entities.Vote) *Store {
	s := &Store{
		votes:     make(map[string]entities.Vote, len(seed)),
		slugs:     make(map[string]string),
		options:   make(map[string][]entities.VoteOption),
		responses: make(map[string]map[string]entities.ResponseSet),
		flags:     make(map[string]entities.Flag),
		actions:   make(map[string][]entities.ModerationAction),
		snapshots: make(map[string]entities.ResultSnapshot),
		outbox:    make(map[string]outboxRecord),
	}
	for _, vote := range seed {
		s.votes[vote.VoteID] = vote
		if vote.Slug != "" {
			s.slugs[vote.Slug] = vote.VoteID
		}
	}
	return s
}

// SetWriteFailure makes every subsequent write fail with err before it
// changes anything. Pass nil to clear.
func (s *Store) SetWriteFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeFailure = err
}

func (s *Store) CreateVote(
	_ context.Context,
	vote entities.Vote,
	options []entities.VoteOption,
	event ports.EventEnvelope,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeFailure != nil {
		return s.writeFailure
	}
	if _, exists := s.votes[vote.VoteID]; exists {
		return domainerrors.ErrConflict
	}
	if err := s.appendOutboxLocked(event); err != nil {
		return err
	}
	vote.OptionCount = len(options)
	s.votes[vote.VoteID] = vote
	s.options[vote.VoteID] = append([]entities.VoteOption(nil), options...)
	return nil
}

func (s *Store) GetVote(_ context.Context, voteID string) (entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[strings.TrimSpace(voteID)]
	if !ok {
		return entities.Vote{}, domainerrors.ErrVoteNotFound
	}
	return vote, nil
}

func (s *Store) GetVoteBySlug(_ context.Context, slug string) (entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	voteID, ok := s.slugs[strings.TrimSpace(slug)]
	if !ok {
		return entities.Vote{}, domainerrors.ErrVoteNotFound
	}
	return s.votes[voteID], nil
}

func (s *Store) ListOptions(_ context.Context, voteID string) ([]entities.VoteOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	voteID = strings.TrimSpace(voteID)
	if _, ok := s.votes[voteID]; !ok {
		return nil, domainerrors.ErrVoteNotFound
	}
	items := append([]entities.VoteOption(nil), s.options[voteID]...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})
	return items, nil
}

func (s *Store) AddOption(
	_ context.Context,
	option entities.VoteOption,
	allowed []entities.VoteStatus,
	event ports.EventEnvelope,
) (entities.VoteOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeFailure != nil {
		return entities.VoteOption{}, s.writeFailure
	}
	vote, ok := s.votes[option.VoteID]
	if !ok {
		return entities.VoteOption{}, domainerrors.ErrVoteNotFound
	}
	if !(entities.Transition{From: allowed}).Allows(vote.Status) {
		return entities.VoteOption{}, domainerrors.ErrInvalidStateTransition
	}

	next := 0
	for _, existing := range s.options[vote.VoteID] {
		if existing.Position >= next {
			next = existing.Position + 1
		}
	}
	option.Position = next
	if err := s.appendOutboxLocked(event); err != nil {
		return entities.VoteOption{}, err
	}
	s.options[vote.VoteID] = append(s.options[vote.VoteID], option)
	vote.OptionCount = len(s.options[vote.VoteID])
	vote.UpdatedAt = option.CreatedAt
	s.votes[vote.VoteID] = vote
	return option, nil
}

func (s *Store) RemoveOption(_ context.Context, voteID string, optionID string, event ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeFailure != nil {
		return s.writeFailure
	}
	vote, ok := s.votes[voteID]
	if !ok {
		return domainerrors.ErrVoteNotFound
	}
	if vote.Status != entities.VoteStatusDraft {
		return domainerrors.ErrInvalidStateTransition
	}
	current := s.options[voteID]
	filtered := make([]entities.VoteOption, 0, len(current))
	for _, option := range current {
		if option.OptionID != optionID {
			filtered = append(filtered, option)
		}
	}
	if len(filtered) == len(current) {
		return domainerrors.ErrOptionNotFound
	}
	if err := s.appendOutboxLocked(event); err != nil {
		return err
	}
	s.options[voteID] = filtered
	vote.OptionCount = len(filtered)
	vote.UpdatedAt = event.OccurredAt
	s.votes[voteID] = vote
	return nil
}

func (s *Store) TransitionVote(_ context.Context, req ports.TransitionRequest) (entities.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeFailure != nil {
		return entities.Vote{}, s.writeFailure
	}
	vote, ok := s.votes[req.VoteID]
	if !ok {
		return entities.Vote{}, domainerrors.ErrVoteNotFound
	}
	if !req.Transition.Allows(vote.Status) {
		return entities.Vote{}, domainerrors.ErrInvalidStateTransition
	}
	if req.MinOptions > 0 && len(s.options[vote.VoteID]) < req.MinOptions {
		return entities.Vote{}, domainerrors.ErrNotEnoughOptions
	}
	if err := s.appendOutboxLocked(req.Event); err != nil {
		return entities.Vote{}, err
	}

	at := req.At.UTC()
	if req.Action != nil {
		action := *req.Action
		action.FromStatus = vote.Status
		action.ToStatus = req.Transition.To
		s.actions[vote.VoteID] = append(s.actions[vote.VoteID], action)
	}
	vote.Status = req.Transition.To
	vote.UpdatedAt = at
	if req.Transition.To == entities.VoteStatusActive && vote.PublishedAt == nil {
		vote.PublishedAt = &at
	}
	if req.Transition.To == entities.VoteStatusClosed && vote.ClosedAt == nil {
		vote.ClosedAt = &at
	}
	if req.Slug != "" && vote.Slug == "" {
		vote.Slug = req.Slug
		s.slugs[req.Slug] = vote.VoteID
	}
	s.votes[vote.VoteID] = vote
	return vote, nil
}

func (s *Store) InsertResponseSet(
	_ context.Context,
	set entities.ResponseSet,
	policy entities.ScorePolicy,
	event ports.EventEnvelope,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeFailure != nil {
		return s.writeFailure
	}
	vote, ok := s.votes[set.VoteID]
	if !ok {
		return domainerrors.ErrVoteNotFound
	}
	if vote.Status != entities.VoteStatusActive {
		return domainerrors.ErrVoteNotAcceptingSubmissions
	}
	if err := entities.ValidateResponseSet(s.options[vote.VoteID], set.Values, policy); err != nil {
		return err
	}
	byIdentity := s.responses[vote.VoteID]
	if byIdentity == nil {
		byIdentity = make(map[string]entities.ResponseSet)
		s.responses[vote.VoteID] = byIdentity
	}
	if _, exists := byIdentity[set.Identity.Key()]; exists {
		return domainerrors.ErrDuplicateIdentity
	}
	if err := s.appendOutboxLocked(event); err != nil {
		return err
	}
	set.Values = maps.Clone(set.Values)
	byIdentity[set.Identity.Key()] = set
	return nil
}

func (s *Store) GetResponseSet(
	_ context.Context,
	voteID string,
	identity entities.Identity,
) (entities.ResponseSet, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.responses[voteID][identity.Key()]
	if !ok {
		return entities.ResponseSet{}, false, nil
	}
	set.Values = maps.Clone(set.Values)
	return set, true, nil
}

func (s *Store) ListResponseSets(_ context.Context, voteID string) ([]entities.ResponseSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.ResponseSet, 0, len(s.responses[voteID]))
	for _, set := range s.responses[voteID] {
		set.Values = maps.Clone(set.Values)
		items = append(items, set)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].SubmittedAt.Equal(items[j].SubmittedAt) {
			return items[i].ResponseSetID < items[j].ResponseSetID
		}
		return items[i].SubmittedAt.Before(items[j].SubmittedAt)
	})
	return items, nil
}

func (s *Store) CreateFlag(_ context.Context, flag entities.Flag, event ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeFailure != nil {
		return s.writeFailure
	}
	if _, ok := s.votes[flag.VoteID]; !ok {
		return domainerrors.ErrVoteNotFound
	}
	if _, exists := s.flags[flag.FlagID]; exists {
		return domainerrors.ErrConflict
	}
	if err := s.appendOutboxLocked(event); err != nil {
		return err
	}
	s.flags[flag.FlagID] = flag
	return nil
}

func (s *Store) GetFlag(_ context.Context, flagID string) (entities.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flag, ok := s.flags[strings.TrimSpace(flagID)]
	if !ok {
		return entities.Flag{}, domainerrors.ErrFlagNotFound
	}
	return flag, nil
}

func (s *Store) ReviewFlag(_ context.Context, review entities.FlagReview, event ports.EventEnvelope) (entities.Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeFailure != nil {
		return entities.Flag{}, s.writeFailure
	}
	flag, ok := s.flags[review.FlagID]
	if !ok {
		return entities.Flag{}, domainerrors.ErrFlagNotFound
	}
	if flag.Status != entities.FlagStatusPending {
		return entities.Flag{}, domainerrors.ErrFlagAlreadyReviewed
	}
	if err := s.appendOutboxLocked(event); err != nil {
		return entities.Flag{}, err
	}
	reviewedAt := review.ReviewedAt.UTC()
	flag.Status = review.Status
	flag.ReviewedBy = review.ReviewerID
	flag.ReviewNotes = review.Notes
	flag.ReviewedAt = &reviewedAt
	s.flags[flag.FlagID] = flag
	return flag, nil
}

func (s *Store) ListFlags(_ context.Context, status entities.FlagStatus, limit int, offset int) ([]entities.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Flag, 0)
	for _, flag := range s.flags {
		if status == "" || flag.Status == status {
			items = append(items, flag)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].FlagID < items[j].FlagID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if offset >= len(items) {
		return []entities.Flag{}, nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) ListModerationActions(_ context.Context, voteID string) ([]entities.ModerationAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.ModerationAction(nil), s.actions[strings.TrimSpace(voteID)]...), nil
}

func (s *Store) SaveResultSnapshot(_ context.Context, snapshot entities.ResultSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeFailure != nil {
		return s.writeFailure
	}
	snapshot.Options = append([]entities.OptionTally(nil), snapshot.Options...)
	s.snapshots[snapshot.VoteID] = snapshot
	return nil
}

func (s *Store) GetResultSnapshot(_ context.Context, voteID string) (entities.ResultSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[strings.TrimSpace(voteID)]
	if !ok {
		return entities.ResultSnapshot{}, domainerrors.ErrSnapshotNotFound
	}
	snapshot.Options = append([]entities.OptionTally(nil), snapshot.Options...)
	return snapshot, nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]outboxRecord, 0)
	for _, record := range s.outbox {
		if !record.published {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].sequence < records[j].sequence
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(records))
	for _, record := range records {
		message := record.message
		message.Payload = append([]byte(nil), message.Payload...)
		items = append(items, message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	record.published = true
	s.outbox[record.message.OutboxID] = record
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) appendOutboxLocked(envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, exists := s.outbox[outboxID]; exists {
		return domainerrors.ErrConflict
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.sequence++
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
		sequence: s.sequence,
	}
	return nil
}

var _ ports.VoteRepository = (*Store)(nil)
var _ ports.ResponseRepository = (*Store)(nil)
var _ ports.FlagRepository = (*Store)(nil)
var _ ports.ModerationRepository = (*Store)(nil)
var _ ports.SnapshotRepository = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)

package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/subscription-service/internal/domain"
	"github.com/spec-kit/subscription-service/internal/events"
	"github.com/spec-kit/subscription-service/internal/observability"
	"github.com/spec-kit/subscription-service/internal/repository"
	"github.com/spec-kit/subscription-service/internal/signing"
	"github.com/spec-kit/subscription-service/pkg/util"
)

// SubscriptionService coordinates subscription-group membership workflows:
// group registry, sessionless link verification, state updates and listing.
type SubscriptionService struct {
	groups      repository.SubscriptionGroupRepository
	segments    repository.SegmentRepository
	assignments repository.SegmentAssignmentRepository
	secrets     repository.SecretRepository
	channels    repository.ChannelRepository
	properties  repository.UserPropertyRepository
	userEvents  repository.UserEventRepository
	cache       repository.ListingCache
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	managePath  string
}

// SubscriptionDependencies bundles collaborators for the service.
type SubscriptionDependencies struct {
	GroupRepo      repository.SubscriptionGroupRepository
	SegmentRepo    repository.SegmentRepository
	AssignmentRepo repository.SegmentAssignmentRepository
	SecretRepo     repository.SecretRepository
	ChannelRepo    repository.ChannelRepository
	PropertyRepo   repository.UserPropertyRepository
	EventRepo      repository.UserEventRepository
	Cache          repository.ListingCache
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	ManagePath     string
}

// NewSubscriptionService constructs the service.
func NewSubscriptionService(deps SubscriptionDependencies) *SubscriptionService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &SubscriptionService{
		groups:      deps.GroupRepo,
		segments:    deps.SegmentRepo,
		assignments: deps.AssignmentRepo,
		secrets:     deps.SecretRepo,
		channels:    deps.ChannelRepo,
		properties:  deps.PropertyRepo,
		userEvents:  deps.EventRepo,
		cache:       deps.Cache,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		managePath:  deps.ManagePath,
	}
}

// UpsertGroupInput describes a registry upsert.
type UpsertGroupInput struct {
	ID          string
	WorkspaceID string
	Name        string
	Type        domain.SubscriptionGroupType
}

// LookupInput carries the opaque tuple from an inbound subscription link.
type LookupInput struct {
	WorkspaceID   string
	Identifier    string
	IdentifierKey string
	Hash          string
}

// BuildLinkInput describes a change URL to assemble.
type BuildLinkInput struct {
	WorkspaceID   string
	UserID        string
	Identifier    string
	IdentifierKey string

	// Optional single-group change hint.
	SubscriptionGroupID string
	Subscribed          *bool
}

// UpsertGroup creates or updates a subscription group together with its
// backing internal segment. The email channel must already exist for the
// workspace; otherwise nothing is written.
func (s *SubscriptionService) UpsertGroup(ctx context.Context, input UpsertGroupInput) (*domain.SubscriptionGroup, error) {
	if input.WorkspaceID == "" || input.Name == "" {
		return nil, util.NewValidationError("workspace id and name are required", nil)
	}
	switch input.Type {
	case domain.SubscriptionGroupTypeOptIn, domain.SubscriptionGroupTypeOptOut:
	default:
		return nil, util.NewValidationError("type must be OptIn or OptOut", map[string]any{"type": string(input.Type)})
	}

	if _, err := s.channels.FindByName(ctx, input.WorkspaceID, domain.ChannelEmail); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("channel", map[string]any{
				"workspace_id": input.WorkspaceID,
				"channel":      domain.ChannelEmail,
			})
		}
		return nil, err
	}

	group := &domain.SubscriptionGroup{
		ID:          input.ID,
		WorkspaceID: input.WorkspaceID,
		Name:        input.Name,
		Type:        input.Type,
	}
	if group.ID == "" {
		group.ID = uuid.NewString()
	}

	segment := &domain.Segment{
		ID:          uuid.NewString(),
		WorkspaceID: input.WorkspaceID,
		Name:        domain.SubscriptionGroupSegmentName(group.ID),
		Definition: domain.SegmentDefinition{
			EntryNode: domain.SegmentNode{
				ID:                  "1",
				Type:                domain.SegmentNodeTypeSubscriptionGroup,
				SubscriptionGroupID: group.ID,
			},
		},
	}

	if err := s.groups.UpsertWithSegment(ctx, group, segment); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:        events.EventSubscriptionGroupUpserted,
		WorkspaceID: group.WorkspaceID,
		Timestamp:   time.Now().UTC(),
		Payload: events.SubscriptionGroupUpsertedPayload{
			SubscriptionGroupID: group.ID,
			SegmentName:         segment.Name,
			Type:                group.Type,
		},
	})
	return group, nil
}

// Lookup resolves the (identifier, identifierKey, hash) tuple of a
// subscription link to a user id. The hash check is the sole authentication;
// there is no session. The secret and property fetches run in parallel.
func (s *SubscriptionService) Lookup(ctx context.Context, input LookupInput) (string, error) {
	var (
		secret string
		userID string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		value, err := s.secrets.Get(gctx, input.WorkspaceID, domain.SecretNameSubscription)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// A provisioned workspace always carries a subscription
				// secret; absence is a deployment fault, not bad user input.
				return util.NewInternalError(fmt.Errorf("subscription secret missing for workspace %s", input.WorkspaceID))
			}
			return err
		}
		secret = value
		return nil
	})
	g.Go(func() error {
		id, err := s.properties.FindUserByValue(gctx, input.WorkspaceID, input.IdentifierKey, canonicalValue(input.Identifier))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return util.NewNotFound("user", map[string]any{"identifier_key": input.IdentifierKey})
			}
			return err
		}
		userID = id
		return nil
	})
	if err := g.Wait(); err != nil {
		if util.ToDomainError(err).Code == util.CodeNotFound {
			s.metrics.RecordVerification(observability.VerificationUserNotFound)
		}
		return "", err
	}

	if !signing.VerifyLinkHash(secret, input.WorkspaceID, userID, input.Identifier, input.IdentifierKey, input.Hash) {
		s.metrics.RecordVerification(observability.VerificationHashMismatch)
		s.logger.Warn("subscription link hash mismatch",
			zap.String("workspace_id", input.WorkspaceID),
			zap.String("identifier_key", input.IdentifierKey))
		return "", util.NewHashMismatch()
	}

	s.metrics.RecordVerification(observability.VerificationOK)
	return userID, nil
}

// ApplyChanges applies a batch of per-group subscribe/unsubscribe decisions.
// Membership upserts and the audit append go to different storage concerns;
// they are issued concurrently and deliberately not wrapped in one
// transaction. Both writes are idempotent, so retrying a failed call is safe.
func (s *SubscriptionService) ApplyChanges(ctx context.Context, workspaceID, userID string, changes map[string]bool) error {
	if len(changes) == 0 {
		return nil
	}

	groupIDs := make([]string, 0, len(changes))
	for id := range changes {
		groupIDs = append(groupIDs, id)
	}
	sort.Strings(groupIDs)

	names := make([]string, len(groupIDs))
	for i, id := range groupIDs {
		names[i] = domain.SubscriptionGroupSegmentName(id)
	}
	foundSegments, err := s.segments.FindByNames(ctx, workspaceID, names)
	if err != nil {
		return err
	}
	segmentByName := make(map[string]domain.Segment, len(foundSegments))
	for _, segment := range foundSegments {
		segmentByName[segment.Name] = segment
	}

	now := time.Now().UTC()
	auditEvents := make([]domain.UserEvent, 0, len(groupIDs))
	assignments := make([]domain.SegmentAssignment, 0, len(groupIDs))

	for _, groupID := range groupIDs {
		subscribed := changes[groupID]
		action := domain.SubscriptionChangeActionUnSubscribe
		if subscribed {
			action = domain.SubscriptionChangeActionSubscribe
		}

		// The audit event is built unconditionally so a structurally broken
		// group still leaves a trace of the requested change.
		auditEvents = append(auditEvents, domain.UserEvent{
			WorkspaceID: workspaceID,
			MessageID:   uuid.NewString(),
			UserID:      userID,
			EventType:   domain.EventTypeTrack,
			Event:       domain.EventSubscriptionChange,
			Properties: domain.SubscriptionChangeProperties{
				SubscriptionID: groupID,
				Action:         action,
			},
			EventTime: now,
		})
		s.metrics.RecordChange(string(action))

		segment, ok := segmentByName[domain.SubscriptionGroupSegmentName(groupID)]
		if !ok {
			// Group exists without its paired segment. Skip the membership
			// write for this group only; the rest of the batch still applies.
			s.logger.Error("no segment backing subscription group",
				zap.String("workspace_id", workspaceID),
				zap.String("subscription_group_id", groupID))
			continue
		}
		assignments = append(assignments, domain.SegmentAssignment{
			WorkspaceID: workspaceID,
			UserID:      userID,
			SegmentID:   segment.ID,
			InSegment:   subscribed,
		})
	}

	// The detached context lets an in-flight update finish even when the
	// request that triggered it goes away; aborting between the two writes
	// would widen the documented partial-failure window.
	writeCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		return s.assignments.UpsertBatch(writeCtx, assignments)
	})
	g.Go(func() error {
		return s.userEvents.AppendBatch(writeCtx, workspaceID, auditEvents)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, groupID := range groupIDs {
		action := domain.SubscriptionChangeActionUnSubscribe
		if changes[groupID] {
			action = domain.SubscriptionChangeActionSubscribe
		}
		s.publish(ctx, events.Event{
			Type:        events.EventSubscriptionChanged,
			WorkspaceID: workspaceID,
			UserID:      userID,
			Timestamp:   time.Now().UTC(),
			Payload: events.SubscriptionChangedPayload{
				SubscriptionGroupID: groupID,
				Action:              action,
			},
		})
	}
	return nil
}

// ListForUser returns one entry per subscription group in the workspace,
// name-ascending. A user with no assignment row is unsubscribed regardless
// of the group's opt posture.
func (s *SubscriptionService) ListForUser(ctx context.Context, workspaceID, userID string) ([]domain.SubscriptionStatus, error) {
	if s.cache != nil {
		if listing, ok := s.cache.Get(ctx, workspaceID, userID); ok {
			return listing, nil
		}
	}

	groups, err := s.groups.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return []domain.SubscriptionStatus{}, nil
	}

	names := make([]string, len(groups))
	for i, group := range groups {
		names[i] = domain.SubscriptionGroupSegmentName(group.ID)
	}
	foundSegments, err := s.segments.FindByNames(ctx, workspaceID, names)
	if err != nil {
		return nil, err
	}
	segmentByName := make(map[string]domain.Segment, len(foundSegments))
	segmentIDs := make([]string, 0, len(foundSegments))
	for _, segment := range foundSegments {
		segmentByName[segment.Name] = segment
		segmentIDs = append(segmentIDs, segment.ID)
	}

	membership, err := s.assignments.ListForUser(ctx, workspaceID, userID, segmentIDs)
	if err != nil {
		return nil, err
	}

	listing := make([]domain.SubscriptionStatus, 0, len(groups))
	for _, group := range groups {
		segment, ok := segmentByName[domain.SubscriptionGroupSegmentName(group.ID)]
		if !ok {
			s.logger.Error("no segment backing subscription group",
				zap.String("workspace_id", workspaceID),
				zap.String("subscription_group_id", group.ID))
			continue
		}
		listing = append(listing, domain.SubscriptionStatus{
			ID:           group.ID,
			Name:         group.Name,
			IsSubscribed: membership[segment.ID],
		})
	}

	if s.cache != nil {
		s.cache.Set(ctx, workspaceID, userID, listing)
	}
	return listing, nil
}

// BuildChangeURL assembles a signed subscription-management link for a user,
// provisioning the workspace subscription secret on first use.
func (s *SubscriptionService) BuildChangeURL(ctx context.Context, input BuildLinkInput) (string, error) {
	if input.WorkspaceID == "" || input.UserID == "" || input.Identifier == "" || input.IdentifierKey == "" {
		return "", util.NewValidationError("workspace id, user id, identifier and identifier key are required", nil)
	}

	secret, err := s.secrets.Get(ctx, input.WorkspaceID, domain.SecretNameSubscription)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", err
		}
		secret, err = s.provisionSecret(ctx, input.WorkspaceID)
		if err != nil {
			return "", err
		}
	}

	return signing.BuildChangeURL(s.managePath, signing.LinkParams{
		WorkspaceID:                input.WorkspaceID,
		UserID:                     input.UserID,
		Identifier:                 input.Identifier,
		IdentifierKey:              input.IdentifierKey,
		Secret:                     secret,
		ChangedSubscriptionGroupID: input.SubscriptionGroupID,
		Subscribed:                 input.Subscribed,
	}), nil
}

func (s *SubscriptionService) provisionSecret(ctx context.Context, workspaceID string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	if err := s.secrets.Create(ctx, workspaceID, domain.SecretNameSubscription, hex.EncodeToString(raw)); err != nil {
		return "", err
	}
	s.logger.Info("provisioned subscription secret", zap.String("workspace_id", workspaceID))
	// Re-read so a concurrent provisioner and this one agree on the winner.
	return s.secrets.Get(ctx, workspaceID, domain.SecretNameSubscription)
}

func (s *SubscriptionService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// canonicalValue applies the JSON string encoding used when property
// assignments are written, so lookups compare like for like.
func canonicalValue(v string) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

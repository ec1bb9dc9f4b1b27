package service

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/subscription-service/internal/domain"
	"github.com/spec-kit/subscription-service/internal/events"
	"github.com/spec-kit/subscription-service/internal/signing"
	"github.com/spec-kit/subscription-service/pkg/util"
)

// ---- fakes ----

type upsertCall struct {
	group   domain.SubscriptionGroup
	segment domain.Segment
}

type fakeGroupRepo struct {
	groups  []domain.SubscriptionGroup
	upserts []upsertCall
	listErr error
}

func (f *fakeGroupRepo) UpsertWithSegment(_ context.Context, group *domain.SubscriptionGroup, segment *domain.Segment) error {
	f.upserts = append(f.upserts, upsertCall{group: *group, segment: *segment})
	return nil
}

func (f *fakeGroupRepo) GetByID(_ context.Context, _, _ string) (*domain.SubscriptionGroup, error) {
	return nil, pgx.ErrNoRows
}

func (f *fakeGroupRepo) ListByWorkspace(_ context.Context, workspaceID string) ([]domain.SubscriptionGroup, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.SubscriptionGroup
	for _, g := range f.groups {
		if g.WorkspaceID == workspaceID {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakeSegmentRepo struct {
	segments []domain.Segment
}

func (f *fakeSegmentRepo) FindByNames(_ context.Context, workspaceID string, names []string) ([]domain.Segment, error) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	var out []domain.Segment
	for _, s := range f.segments {
		if s.WorkspaceID == workspaceID && wanted[s.Name] {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeAssignmentRepo struct {
	mu   sync.Mutex
	rows map[string]bool // segmentID -> inSegment (single workspace/user in tests)
}

func (f *fakeAssignmentRepo) UpsertBatch(_ context.Context, assignments []domain.SegmentAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows == nil {
		f.rows = map[string]bool{}
	}
	for _, a := range assignments {
		f.rows[a.SegmentID] = a.InSegment
	}
	return nil
}

func (f *fakeAssignmentRepo) ListForUser(_ context.Context, _, _ string, segmentIDs []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]bool{}
	for _, id := range segmentIDs {
		if in, ok := f.rows[id]; ok {
			out[id] = in
		}
	}
	return out, nil
}

type fakeSecretRepo struct {
	values map[string]string // workspaceID|name -> value
}

func (f *fakeSecretRepo) Get(_ context.Context, workspaceID, name string) (string, error) {
	if v, ok := f.values[workspaceID+"|"+name]; ok {
		return v, nil
	}
	return "", pgx.ErrNoRows
}

func (f *fakeSecretRepo) Create(_ context.Context, workspaceID, name, value string) error {
	if f.values == nil {
		f.values = map[string]string{}
	}
	key := workspaceID + "|" + name
	if _, ok := f.values[key]; !ok {
		f.values[key] = value
	}
	return nil
}

type fakeChannelRepo struct {
	channels map[string]string // workspaceID|name -> id
}

func (f *fakeChannelRepo) FindByName(_ context.Context, workspaceID, name string) (*domain.Channel, error) {
	id, ok := f.channels[workspaceID+"|"+name]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &domain.Channel{ID: id, WorkspaceID: workspaceID, Name: name}, nil
}

type fakePropertyRepo struct {
	users map[string]string // propertyName|canonicalValue -> userID
}

func (f *fakePropertyRepo) FindUserByValue(_ context.Context, _, propertyName, value string) (string, error) {
	if id, ok := f.users[propertyName+"|"+value]; ok {
		return id, nil
	}
	return "", pgx.ErrNoRows
}

type fakeEventRepo struct {
	mu       sync.Mutex
	appended []domain.UserEvent
}

func (f *fakeEventRepo) AppendBatch(_ context.Context, _ string, events []domain.UserEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, events...)
	return nil
}

type fixture struct {
	groups      *fakeGroupRepo
	segments    *fakeSegmentRepo
	assignments *fakeAssignmentRepo
	secrets     *fakeSecretRepo
	channels    *fakeChannelRepo
	properties  *fakePropertyRepo
	userEvents  *fakeEventRepo
	dispatcher  events.Dispatcher
	service     *SubscriptionService
}

func newFixture() *fixture {
	f := &fixture{
		groups:      &fakeGroupRepo{},
		segments:    &fakeSegmentRepo{},
		assignments: &fakeAssignmentRepo{},
		secrets:     &fakeSecretRepo{values: map[string]string{"ws1|" + domain.SecretNameSubscription: "s3cr3t"}},
		channels:    &fakeChannelRepo{channels: map[string]string{"ws1|email": "ch1"}},
		properties:  &fakePropertyRepo{users: map[string]string{`email|"a@b.com"`: "u1"}},
		userEvents:  &fakeEventRepo{},
		dispatcher:  events.NewMemoryDispatcher(),
	}
	f.service = NewSubscriptionService(SubscriptionDependencies{
		GroupRepo:      f.groups,
		SegmentRepo:    f.segments,
		AssignmentRepo: f.assignments,
		SecretRepo:     f.secrets,
		ChannelRepo:    f.channels,
		PropertyRepo:   f.properties,
		EventRepo:      f.userEvents,
		Dispatcher:     f.dispatcher,
	})
	return f
}

func (f *fixture) addGroupWithSegment(groupID, name string, groupType domain.SubscriptionGroupType) domain.Segment {
	f.groups.groups = append(f.groups.groups, domain.SubscriptionGroup{
		ID:          groupID,
		WorkspaceID: "ws1",
		Name:        name,
		Type:        groupType,
	})
	segment := domain.Segment{
		ID:          "seg-" + groupID,
		WorkspaceID: "ws1",
		Name:        domain.SubscriptionGroupSegmentName(groupID),
		Definition: domain.SegmentDefinition{
			EntryNode: domain.SegmentNode{ID: "1", Type: domain.SegmentNodeTypeSubscriptionGroup, SubscriptionGroupID: groupID},
		},
	}
	f.segments.segments = append(f.segments.segments, segment)
	return segment
}

// ---- registry ----

func TestUpsertGroupChannelMissing(t *testing.T) {
	f := newFixture()
	f.channels.channels = map[string]string{}

	_, err := f.service.UpsertGroup(context.Background(), UpsertGroupInput{
		ID:          "g1",
		WorkspaceID: "ws1",
		Name:        "Product Updates",
		Type:        domain.SubscriptionGroupTypeOptOut,
	})
	require.Error(t, err)
	assert.Equal(t, util.CodeNotFound, util.ToDomainError(err).Code)
	assert.Empty(t, f.groups.upserts, "nothing must be written without the email channel")
}

func TestUpsertGroupCreatesBackingSegment(t *testing.T) {
	f := newFixture()

	group, err := f.service.UpsertGroup(context.Background(), UpsertGroupInput{
		ID:          "g1",
		WorkspaceID: "ws1",
		Name:        "Product Updates",
		Type:        domain.SubscriptionGroupTypeOptOut,
	})
	require.NoError(t, err)
	assert.Equal(t, "g1", group.ID)

	require.Len(t, f.groups.upserts, 1)
	segment := f.groups.upserts[0].segment
	assert.Equal(t, "subscriptionGroup-g1", segment.Name)
	assert.Equal(t, "ws1", segment.WorkspaceID)
	assert.Equal(t, domain.SegmentNodeTypeSubscriptionGroup, segment.Definition.EntryNode.Type)
	assert.Equal(t, "g1", segment.Definition.EntryNode.SubscriptionGroupID)
}

func TestUpsertGroupGeneratesID(t *testing.T) {
	f := newFixture()

	group, err := f.service.UpsertGroup(context.Background(), UpsertGroupInput{
		WorkspaceID: "ws1",
		Name:        "Newsletter",
		Type:        domain.SubscriptionGroupTypeOptIn,
	})
	require.NoError(t, err)
	require.NotEmpty(t, group.ID)
	require.Len(t, f.groups.upserts, 1)
	assert.Equal(t, domain.SubscriptionGroupSegmentName(group.ID), f.groups.upserts[0].segment.Name)
}

func TestUpsertGroupIdempotentSegmentName(t *testing.T) {
	f := newFixture()

	input := UpsertGroupInput{ID: "g1", WorkspaceID: "ws1", Name: "Product Updates", Type: domain.SubscriptionGroupTypeOptOut}
	_, err := f.service.UpsertGroup(context.Background(), input)
	require.NoError(t, err)

	input.Name = "Renamed"
	input.Type = domain.SubscriptionGroupTypeOptIn
	_, err = f.service.UpsertGroup(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, f.groups.upserts, 2)
	// Same segment name and definition both times; the conflict clause in the
	// repository keeps the stored definition unchanged.
	assert.Equal(t, f.groups.upserts[0].segment.Name, f.groups.upserts[1].segment.Name)
	assert.Equal(t, f.groups.upserts[0].segment.Definition, f.groups.upserts[1].segment.Definition)
	assert.Equal(t, "Renamed", f.groups.upserts[1].group.Name)
}

func TestUpsertGroupRejectsUnknownType(t *testing.T) {
	f := newFixture()
	_, err := f.service.UpsertGroup(context.Background(), UpsertGroupInput{
		WorkspaceID: "ws1",
		Name:        "Newsletter",
		Type:        "Sometimes",
	})
	require.Error(t, err)
	assert.Equal(t, util.CodeValidationFailed, util.ToDomainError(err).Code)
}

// ---- lookup ----

func TestLookupRoundTrip(t *testing.T) {
	f := newFixture()

	raw, err := f.service.BuildChangeURL(context.Background(), BuildLinkInput{
		WorkspaceID:   "ws1",
		UserID:        "u1",
		Identifier:    "a@b.com",
		IdentifierKey: "email",
	})
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	values := parsed.Query()

	userID, err := f.service.Lookup(context.Background(), LookupInput{
		WorkspaceID:   values.Get(signing.ParamWorkspaceID),
		Identifier:    values.Get(signing.ParamIdentifier),
		IdentifierKey: values.Get(signing.ParamIdentifierKey),
		Hash:          values.Get(signing.ParamHash),
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestLookupUserNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.service.Lookup(context.Background(), LookupInput{
		WorkspaceID:   "ws1",
		Identifier:    "nobody@b.com",
		IdentifierKey: "email",
		Hash:          signing.LinkHash("s3cr3t", "ws1", "u1", "nobody@b.com", "email"),
	})
	require.Error(t, err)
	assert.Equal(t, util.CodeNotFound, util.ToDomainError(err).Code)
}

func TestLookupHashMismatch(t *testing.T) {
	f := newFixture()

	_, err := f.service.Lookup(context.Background(), LookupInput{
		WorkspaceID:   "ws1",
		Identifier:    "a@b.com",
		IdentifierKey: "email",
		Hash:          signing.LinkHash("wrong-secret", "ws1", "u1", "a@b.com", "email"),
	})
	require.Error(t, err)
	assert.Equal(t, util.CodeHashMismatch, util.ToDomainError(err).Code)
}

func TestLookupMissingSecretIsConfigurationFault(t *testing.T) {
	f := newFixture()
	f.secrets.values = map[string]string{}

	_, err := f.service.Lookup(context.Background(), LookupInput{
		WorkspaceID:   "ws1",
		Identifier:    "a@b.com",
		IdentifierKey: "email",
		Hash:          signing.LinkHash("s3cr3t", "ws1", "u1", "a@b.com", "email"),
	})
	require.Error(t, err)
	assert.Equal(t, util.CodeInternal, util.ToDomainError(err).Code)
}

// ---- state updater + listing ----

func actionCounts(appended []domain.UserEvent) map[domain.SubscriptionChangeAction]int {
	counts := map[domain.SubscriptionChangeAction]int{}
	for _, event := range appended {
		props, ok := event.Properties.(domain.SubscriptionChangeProperties)
		if ok {
			counts[props.Action]++
		}
	}
	return counts
}

func TestApplyChangesWritesAssignmentsAndEvents(t *testing.T) {
	f := newFixture()
	seg1 := f.addGroupWithSegment("g1", "Product Updates", domain.SubscriptionGroupTypeOptOut)
	seg2 := f.addGroupWithSegment("g2", "Weekly Digest", domain.SubscriptionGroupTypeOptIn)

	err := f.service.ApplyChanges(context.Background(), "ws1", "u1", map[string]bool{"g1": true, "g2": false})
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{seg1.ID: true, seg2.ID: false}, f.assignments.rows)

	require.Len(t, f.userEvents.appended, 2)
	seen := map[string]bool{}
	for _, event := range f.userEvents.appended {
		assert.Equal(t, domain.EventTypeTrack, event.EventType)
		assert.Equal(t, domain.EventSubscriptionChange, event.Event)
		assert.Equal(t, "u1", event.UserID)
		assert.False(t, seen[event.MessageID], "message ids must be unique")
		seen[event.MessageID] = true
	}
	counts := actionCounts(f.userEvents.appended)
	assert.Equal(t, 1, counts[domain.SubscriptionChangeActionSubscribe])
	assert.Equal(t, 1, counts[domain.SubscriptionChangeActionUnSubscribe])
}

func TestApplyChangesOrphanedGroupBestEffort(t *testing.T) {
	f := newFixture()
	seg1 := f.addGroupWithSegment("g1", "Product Updates", domain.SubscriptionGroupTypeOptOut)
	// g2 exists without its paired segment.
	f.groups.groups = append(f.groups.groups, domain.SubscriptionGroup{
		ID: "g2", WorkspaceID: "ws1", Name: "Weekly Digest", Type: domain.SubscriptionGroupTypeOptIn,
	})

	err := f.service.ApplyChanges(context.Background(), "ws1", "u1", map[string]bool{"g1": true, "g2": true})
	require.NoError(t, err)

	// The orphaned group contributes no assignment but still leaves an event.
	assert.Equal(t, map[string]bool{seg1.ID: true}, f.assignments.rows)
	assert.Len(t, f.userEvents.appended, 2)
}

func TestApplyChangesPublishesEvents(t *testing.T) {
	f := newFixture()
	f.addGroupWithSegment("g1", "Product Updates", domain.SubscriptionGroupTypeOptOut)

	var published []events.Event
	f.dispatcher.Subscribe(events.EventSubscriptionChanged, func(_ context.Context, event events.Event) error {
		published = append(published, event)
		return nil
	})

	err := f.service.ApplyChanges(context.Background(), "ws1", "u1", map[string]bool{"g1": false})
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "ws1", published[0].WorkspaceID)
	assert.Equal(t, "u1", published[0].UserID)
}

func TestListDefaultsToUnsubscribed(t *testing.T) {
	f := newFixture()
	f.addGroupWithSegment("g1", "Product Updates", domain.SubscriptionGroupTypeOptOut)

	listing, err := f.service.ListForUser(context.Background(), "ws1", "u1")
	require.NoError(t, err)
	require.Len(t, listing, 1)
	// No assignment row means unsubscribed even for an OptOut group.
	assert.False(t, listing[0].IsSubscribed)
}

func TestSubscribeThenListScenario(t *testing.T) {
	f := newFixture()
	f.addGroupWithSegment("g1", "Product Updates", domain.SubscriptionGroupTypeOptOut)

	err := f.service.ApplyChanges(context.Background(), "ws1", "u1", map[string]bool{"g1": true})
	require.NoError(t, err)

	listing, err := f.service.ListForUser(context.Background(), "ws1", "u1")
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, "g1", listing[0].ID)
	assert.True(t, listing[0].IsSubscribed)

	counts := actionCounts(f.userEvents.appended)
	assert.Equal(t, 1, counts[domain.SubscriptionChangeActionSubscribe])
	assert.Zero(t, counts[domain.SubscriptionChangeActionUnSubscribe])
}

func TestListSkipsGroupWithoutSegment(t *testing.T) {
	f := newFixture()
	f.addGroupWithSegment("g1", "Product Updates", domain.SubscriptionGroupTypeOptOut)
	f.groups.groups = append(f.groups.groups, domain.SubscriptionGroup{
		ID: "g2", WorkspaceID: "ws1", Name: "Weekly Digest", Type: domain.SubscriptionGroupTypeOptIn,
	})

	listing, err := f.service.ListForUser(context.Background(), "ws1", "u1")
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, "g1", listing[0].ID)
}

// ---- link building ----

func TestBuildChangeURLProvisionsSecret(t *testing.T) {
	f := newFixture()
	f.secrets.values = map[string]string{}

	raw, err := f.service.BuildChangeURL(context.Background(), BuildLinkInput{
		WorkspaceID:   "ws1",
		UserID:        "u1",
		Identifier:    "a@b.com",
		IdentifierKey: "email",
	})
	require.NoError(t, err)

	secret, ok := f.secrets.values["ws1|"+domain.SecretNameSubscription]
	require.True(t, ok, "secret must be provisioned on first use")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.True(t, signing.VerifyLinkHash(secret, "ws1", "u1", "a@b.com", "email", parsed.Query().Get(signing.ParamHash)))
}

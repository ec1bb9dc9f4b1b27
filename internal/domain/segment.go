package domain

import "time"

// SegmentNodeType identifies the kind of a segment definition node. This
// service only evaluates the SubscriptionGroup kind; richer trait and
// behavioral kinds belong to the general segmentation engine.
type SegmentNodeType string

const SegmentNodeTypeSubscriptionGroup SegmentNodeType = "SubscriptionGroup"

// SegmentNode is a single node of a segment definition tree.
type SegmentNode struct {
	ID                  string          `json:"id"`
	Type                SegmentNodeType `json:"type"`
	SubscriptionGroupID string          `json:"subscriptionGroupId,omitempty"`
}

// SegmentDefinition is the stored shape of a segment. Internal
// subscription-group segments hold exactly one entry node.
type SegmentDefinition struct {
	EntryNode SegmentNode `json:"entryNode"`
}

// Segment mirrors a subscription group's membership. Internal segments are
// owned by the registry and never edited directly by users.
type Segment struct {
	ID          string
	WorkspaceID string
	Name        string
	Definition  SegmentDefinition
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SubscriptionGroupSegmentName derives the deterministic name of the
// internal segment backing a subscription group. The (workspace, name)
// uniqueness constraint on segments makes the pairing 1:1.
func SubscriptionGroupSegmentName(groupID string) string {
	return "subscriptionGroup-" + groupID
}

// SegmentAssignment records whether a user currently belongs to a segment.
// At most one row exists per (workspace, user, segment) triple;
// InSegment is last-write-wins.
type SegmentAssignment struct {
	WorkspaceID string
	UserID      string
	SegmentID   string
	InSegment   bool
}

package domain

// ChannelEmail is the messaging channel subscription groups attach to. A
// workspace must register it before any group can be created.
const ChannelEmail = "email"

// Channel is a messaging channel registered for a workspace.
type Channel struct {
	ID          string
	WorkspaceID string
	Name        string
}

// SecretNameSubscription names the per-workspace symmetric key used to
// authenticate unsubscribe links.
const SecretNameSubscription = "subscription-secret"

// UserPropertyAssignment binds a property value to a user. The value is
// stored canonically JSON-encoded so sessionless lookups can match it
// exactly.
type UserPropertyAssignment struct {
	WorkspaceID string
	UserID      string
	Property    string
	Value       string
}

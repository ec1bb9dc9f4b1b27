package signing

import "net/url"

// Query parameter names understood by the subscription-management page.
const (
	ParamWorkspaceID    = "w"
	ParamIdentifier     = "i"
	ParamIdentifierKey  = "ik"
	ParamHash           = "h"
	ParamSubscriptionID = "s"
	ParamChangeFlag     = "sub"
)

// DefaultManagePath is the dashboard route generated links point at.
const DefaultManagePath = "/dashboard/public/subscription-management"

// LinkParams carries everything needed to build a change URL. UserID is
// folded into the hash input and never appears in the query string; the link
// is anonymous except for the workspace-scoped identifier.
type LinkParams struct {
	WorkspaceID   string
	UserID        string
	Identifier    string
	IdentifierKey string
	Secret        string

	// Optional single-group change hint.
	ChangedSubscriptionGroupID string
	Subscribed                 *bool
}

// LinkHash computes the authentication digest embedded in change URLs.
func LinkHash(secret, workspaceID, userID, identifier, identifierKey string) string {
	return Hash(secret, linkPayload(workspaceID, userID, identifier, identifierKey))
}

// VerifyLinkHash checks the digest supplied by an inbound change request
// against the one expected for the resolved user.
func VerifyLinkHash(secret, workspaceID, userID, identifier, identifierKey, provided string) bool {
	return VerifyHash(secret, linkPayload(workspaceID, userID, identifier, identifierKey), provided)
}

func linkPayload(workspaceID, userID, identifier, identifierKey string) map[string]string {
	return map[string]string{
		"u": userID,
		"w": workspaceID,
		"i": identifier,
		"k": identifierKey,
	}
}

// BuildChangeURL produces a relative subscription-management URL. It performs
// no network calls; the caller supplies the workspace subscription secret.
func BuildChangeURL(basePath string, p LinkParams) string {
	if basePath == "" {
		basePath = DefaultManagePath
	}

	values := url.Values{}
	values.Set(ParamWorkspaceID, p.WorkspaceID)
	values.Set(ParamIdentifier, p.Identifier)
	values.Set(ParamIdentifierKey, p.IdentifierKey)
	values.Set(ParamHash, LinkHash(p.Secret, p.WorkspaceID, p.UserID, p.Identifier, p.IdentifierKey))

	if p.ChangedSubscriptionGroupID != "" {
		values.Set(ParamSubscriptionID, p.ChangedSubscriptionGroupID)
		if p.Subscribed != nil {
			flag := "0"
			if *p.Subscribed {
				flag = "1"
			}
			values.Set(ParamChangeFlag, flag)
		}
	}

	return basePath + "?" + values.Encode()
}

package resclient

import (
	"regexp"
	"strings"
)

const (
	credentialsRequiredReason = "required"
	credentialsCodeReason     = "must be 1-10 letters or digits"
)

var reAgentCode = regexp.MustCompile(`^[A-Za-z0-9]{1,10}$`)

// Credentials identify an agent to the identity endpoint.
type Credentials struct {
	// Username is the agent name (max 64 chars)
	Username string `json:"username"`

	// Password is the agent password (max 128 chars)
	Password string `json:"password"`

	// Domain is the agent domain code, e.g. "WWW" or "DEF"
	Domain string `json:"domain,omitempty"`

	// Location is the optional location code the session is opened for
	Location string `json:"location,omitempty"`

	// RoleCode selects one of the agent's roles
	RoleCode string `json:"roleCode,omitempty"`

	// ChannelType is the sales channel, e.g. "Api" or "Web"
	ChannelType string `json:"channelType,omitempty"`
}

// Validate checks the credentials before they are sent.
// Returns a map of field names to error messages, or nil if all fields are valid.
func (c Credentials) Validate() map[string]string {
	errs := make(map[string]string)

	username := strings.TrimSpace(c.Username)
	switch {
	case username == "":
		errs["username"] = credentialsRequiredReason
	case len(username) > 64:
		errs["username"] = "too long (max 64)"
	}

	switch {
	case c.Password == "":
		errs["password"] = credentialsRequiredReason
	case len(c.Password) > 128:
		errs["password"] = "too long (max 128)"
	}

	for field, code := range map[string]string{
		"domain":   c.Domain,
		"location": c.Location,
		"roleCode": c.RoleCode,
	} {
		if code != "" && !reAgentCode.MatchString(code) {
			errs[field] = credentialsCodeReason
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// tokenRequest is the identity endpoint payload.
type tokenRequest struct {
	Credentials Credentials `json:"credentials"`
}

package gate

// Outcome is the terminal kind of a routing decision.
type Outcome string

const (
	OutcomeAllow    Outcome = "allow"
	OutcomeRedirect Outcome = "redirect"
)

// Context headers attached on Allow for downstream handlers.
const (
	HeaderOrganizationID   = "x-organization-id"
	HeaderOrganizationSlug = "x-organization-slug"
	HeaderPathname         = "x-pathname"
)

// Decision is the single routing verdict for one request. It is produced
// fresh per request and never cached: organization and subscription state
// change underneath running sessions.
type Decision struct {
	Outcome  Outcome
	Location string
	// Reason is a low-cardinality label naming the branch that decided.
	Reason  string
	Headers map[string]string
}

// Allow builds a pass-through decision.
func Allow(reason string) Decision {
	return Decision{Outcome: OutcomeAllow, Reason: reason}
}

// Redirect builds a redirect decision. Location may be a path or an
// absolute URL on another organization host.
func Redirect(location, reason string) Decision {
	return Decision{Outcome: OutcomeRedirect, Location: location, Reason: reason}
}

// WithHeader attaches a downstream context header to an Allow decision.
func (d Decision) WithHeader(key, value string) Decision {
	if d.Headers == nil {
		d.Headers = make(map[string]string, 3)
	}
	d.Headers[key] = value
	return d
}

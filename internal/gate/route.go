package gate

import (
	"strings"

	"github.com/lokera/lokera/internal/config"
)

// RouteClass partitions the URL space into the classes the state machine
// distinguishes. Classification happens before any lookup so that every
// branch of the decision table names a class, not a raw path.
type RouteClass int

const (
	// RouteOrgScoped is the default: business routes that require a
	// configured organization and an operational subscription.
	RouteOrgScoped RouteClass = iota
	// RoutePublic is reachable without a session.
	RoutePublic
	// RouteAuth covers sign-in and sign-up.
	RouteAuth
	// RouteSetup is the one-time onboarding wizard.
	RouteSetup
	// RouteBilling is the subscription settings page, reachable even when
	// the subscription is inactive so admins can fix billing.
	RouteBilling
	// RouteInactive is the subscription-inactive notice page.
	RouteInactive
	// RouteAdmin is the platform operator area.
	RouteAdmin
)

func (c RouteClass) String() string {
	switch c {
	case RoutePublic:
		return "public"
	case RouteAuth:
		return "auth"
	case RouteSetup:
		return "setup"
	case RouteBilling:
		return "billing"
	case RouteInactive:
		return "subscription_inactive"
	case RouteAdmin:
		return "admin"
	default:
		return "org_scoped"
	}
}

// Protected reports whether the class requires a session.
func (c RouteClass) Protected() bool {
	return c != RoutePublic && c != RouteAuth
}

const (
	PathSignIn    = "/sign-in"
	PathSignUp    = "/sign-up"
	PathDashboard = "/dashboard"
	PathSetup     = "/setup"
	PathBilling   = "/settings/subscription"
	PathInactive  = "/subscription-inactive"
	PathAdmin     = "/admin"
	PathAdminHome = "/admin/home"
	PathAdminOrgs = "/admin/orgs"
)

// ClassifyRoute maps a request path to its route class. Fixed application
// routes win over the configurable public prefixes so that an operator
// cannot accidentally declare the admin area public.
func ClassifyRoute(path string, cfg config.AccessConfig) RouteClass {
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	switch {
	case underPrefix(path, PathSignIn), underPrefix(path, PathSignUp):
		return RouteAuth
	case underPrefix(path, PathSetup):
		return RouteSetup
	case underPrefix(path, PathBilling):
		return RouteBilling
	case underPrefix(path, PathInactive):
		return RouteInactive
	case underPrefix(path, PathAdmin):
		return RouteAdmin
	}

	for _, prefix := range cfg.PublicPrefixes {
		if prefix == "/" {
			if path == "/" {
				return RoutePublic
			}
			continue
		}
		if underPrefix(path, prefix) {
			return RoutePublic
		}
	}
	return RouteOrgScoped
}

func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

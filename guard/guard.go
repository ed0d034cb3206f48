// Package guard decides which dashboard routes a session may see.
package guard

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/dashboard-auth/session"
)

type Kind int

const (
	// Public routes are open to everyone.
	Public Kind = iota
	// Protected routes require an authenticated session.
	Protected
	// AuthOnly routes (login, register) are for signed-out users only.
	AuthOnly
	// Redirect routes always forward to Route.Target.
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Protected:
		return "protected"
	case AuthOnly:
		return "auth-only"
	case Redirect:
		return "redirect"
	default:
		return "public"
	}
}

const (
	LoginPath = "/login"
	HomePath  = "/dashboard"
)

// Decision is Allow, or a redirect to RedirectTo.
type Decision struct {
	Allow      bool
	RedirectTo string
}

// Decide is the whole guard policy.
func Decide(kind Kind, authenticated bool) Decision {
	switch kind {
	case Protected:
		if !authenticated {
			return Decision{RedirectTo: LoginPath}
		}
	case AuthOnly:
		if authenticated {
			return Decision{RedirectTo: HomePath}
		}
	case Redirect:
		return Decision{RedirectTo: HomePath}
	}
	return Decision{Allow: true}
}

type Route struct {
	Path   string
	Kind   Kind
	Target string // Redirect only
}

// Routes is the dashboard's route table.
var Routes = []Route{
	{Path: "/", Kind: Redirect, Target: HomePath},
	{Path: "/login", Kind: AuthOnly},
	{Path: "/register", Kind: AuthOnly},
	{Path: "/forgot-password", Kind: AuthOnly},
	{Path: "/dashboard", Kind: Protected},
	{Path: "/dashboard/users", Kind: Protected},
	{Path: "/dashboard/business-units", Kind: Protected},
	{Path: "/dashboard/active-directories", Kind: Protected},
	{Path: "/logout", Kind: Protected},
}

// Lookup finds the route for path, ignoring a trailing slash.
func Lookup(path string) (Route, bool) {
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	for _, r := range Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// Resolve applies Decide to path. Unknown paths are allowed through so the
// caller can answer 404.
func Resolve(path string, authenticated bool) Decision {
	route, ok := Lookup(path)
	if !ok {
		return Decision{Allow: true}
	}
	d := Decide(route.Kind, authenticated)
	if route.Kind == Redirect && route.Target != "" {
		d.RedirectTo = route.Target
	}
	return d
}

// RequireAuthenticated sends signed-out requests to the login page.
func RequireAuthenticated(reader session.Reader) func(http.HandlerFunc) http.HandlerFunc {
	return middleware(reader, Protected)
}

// RequireSignedOut sends signed-in requests to the dashboard.
func RequireSignedOut(reader session.Reader) func(http.HandlerFunc) http.HandlerFunc {
	return middleware(reader, AuthOnly)
}

func middleware(reader session.Reader, kind Kind) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			d := Decide(kind, reader.IsAuthenticated())
			if !d.Allow {
				http.Redirect(w, r, d.RedirectTo, http.StatusFound)
				return
			}
			next(w, r)
		}
	}
}

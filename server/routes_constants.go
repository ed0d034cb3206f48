package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Signed-out pages
	RouteLogin          = "/login"
	RouteRegister       = "/register"
	RouteForgotPassword = "/forgot-password"

	// Dashboard pages
	RouteDashboard         = "/dashboard"
	RouteUsers             = "/dashboard/users"
	RouteBusinessUnits     = "/dashboard/business-units"
	RouteActiveDirectories = "/dashboard/active-directories"
	RouteLogout            = "/logout"

	// API Routes
	RouteAPILogin    = "/api/login"
	RouteAPIRegister = "/api/register"
	RouteAPILogout   = "/api/logout"
	RouteAPISession  = "/api/session"
	RouteAPIWhoAmI   = "/api/whoami"

	RouteMetrics = "/metrics"
)

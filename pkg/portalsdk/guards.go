package portalsdk

// Entry points of the portal's navigation tree.
const (
	LoginPath     = "/auth/login"
	AppPath       = "/sistema"
	DashboardPath = "/dashboard"
)

// Session is what the guards consult.
type Session interface {
	Token() (string, bool)
	IsLoggedIn() bool
}

// Decision is the result of a guard. When Admit is false, Redirect names
// where to go instead.
type Decision struct {
	Admit          bool
	Redirect       string
	ReplaceHistory bool
}

// RequireAuth admits when a valid token exists or the live state is logged
// in, otherwise redirects to the login page replacing history, so going
// back does not return to the guarded page.
func RequireAuth(s Session) Decision {
	if _, ok := s.Token(); ok || s.IsLoggedIn() {
		return Decision{Admit: true}
	}
	return Decision{Redirect: LoginPath, ReplaceHistory: true}
}

// RequireGuest admits only when there is no valid token, e.g. for the login
// and registration pages.
func RequireGuest(s Session) Decision {
	if _, ok := s.Token(); ok {
		return Decision{Redirect: AppPath}
	}
	return Decision{Admit: true}
}

// HomeRedirect resolves the root path.
func HomeRedirect(s Session) Decision {
	if _, ok := s.Token(); ok || s.IsLoggedIn() {
		return Decision{Redirect: DashboardPath, ReplaceHistory: true}
	}
	return Decision{Redirect: LoginPath, ReplaceHistory: true}
}

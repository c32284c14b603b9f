package dashboard

// LockState is the view-lock coordinator's state machine.
type LockState string

const (
	StateAnonymous  LockState = "ANONYMOUS"
	StateGuest      LockState = "GUEST"
	StateRegistered LockState = "REGISTERED"
)

// sessionSource is the read side of the session store.
type sessionSource interface {
	Current() (Session, bool)
}

// ViewLock derives feature gating from the current session. It holds no
// state of its own: every query reads the store, so a login or logout is
// reflected immediately.
type ViewLock struct {
	sessions sessionSource
}

// NewViewLock builds a coordinator over the session store.
func NewViewLock(sessions sessionSource) *ViewLock {
	return &ViewLock{sessions: sessions}
}

// State reports ANONYMOUS, GUEST, or REGISTERED.
func (v *ViewLock) State() LockState {
	session, ok := v.sessions.Current()
	switch {
	case !ok:
		return StateAnonymous
	case session.Registered():
		return StateRegistered
	default:
		return StateGuest
	}
}

// IsLocked reports whether the satellite imagery panels are locked: true
// for everything but a registered session.
func (v *ViewLock) IsLocked() bool {
	return v.State() != StateRegistered
}

// CanRegisterShelters reports whether shelter registration is available.
// Guests may register shelters; anonymous visitors may not.
func (v *ViewLock) CanRegisterShelters() bool {
	return v.State() != StateAnonymous
}

// WeatherUnlocked reports whether the weather and flood panels are
// available. They are public in every state.
func (v *ViewLock) WeatherUnlocked() bool {
	return true
}

package account

// Status is the account service's view of an account. It is implemented only
// by NeedEnrollment and Ready.
type Status interface {
	isStatus()
}

// NeedEnrollment means no valid session token exists for the account.
type NeedEnrollment struct{}

func (NeedEnrollment) isStatus() {}

// NotificationSettings mirrors the service's per-account notification toggles.
type NotificationSettings struct {
	Enabled      bool `json:"enabled"`
	Transactions bool `json:"transactions,omitempty"`
	Security     bool `json:"security,omitempty"`
	Promotional  bool `json:"promotional,omitempty"`
}

// Ready is an authenticated account. Token is never empty.
type Ready struct {
	KYCStatus            *string
	NotificationSettings NotificationSettings
	Suspended            bool
	Token                string
}

func (Ready) isStatus() {}

// NewReady builds a Ready status. It returns NeedEnrollment when token is
// empty so a tokenless authenticated status cannot be constructed.
func NewReady(token string, kyc *string, settings NotificationSettings, suspended bool) Status {
	if token == "" {
		return NeedEnrollment{}
	}

	return Ready{
		KYCStatus:            kyc,
		NotificationSettings: settings,
		Suspended:            suspended,
		Token:                token,
	}
}

// MatchStatus calls exactly one of the branch functions. A nil status is
// treated as NeedEnrollment.
func MatchStatus[T any](s Status, onNeed func() T, onReady func(Ready) T) T {
	switch v := s.(type) {
	case Ready:
		return onReady(v)
	case *Ready:
		if v == nil {
			return onNeed()
		}
		return onReady(*v)
	default:
		return onNeed()
	}
}

// Token returns the session token carried by s, or "" for NeedEnrollment.
func Token(s Status) string {
	return MatchStatus(s,
		func() string { return "" },
		func(r Ready) string { return r.Token },
	)
}

// StatusName returns "need-enrollment" or "ready".
func StatusName(s Status) string {
	return MatchStatus(s,
		func() string { return "need-enrollment" },
		func(Ready) string { return "ready" },
	)
}

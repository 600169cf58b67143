package admin

import "time"

// UserStats is the identity service's dashboard contribution.
type UserStats struct {
	Total        int64 `json:"total"`
	ActiveLast30 int64 `json:"active_last_30"`
}

// AthleteStats is the athlete service's dashboard contribution.
type AthleteStats struct {
	Total    int64 `json:"total"`
	Verified int64 `json:"verified"`
}

// InvestorStats is the investor service's dashboard contribution.
type InvestorStats struct {
	Total          int64 `json:"total"`
	CommittedCents int64 `json:"committed_cents"`
}

// Dashboard aggregates the three downstream stats payloads.
type Dashboard struct {
	Users     UserStats     `json:"users"`
	Athletes  AthleteStats  `json:"athletes"`
	Investors InvestorStats `json:"investors"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// UserProfile is the identity service's view of one user.
type UserProfile struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Active      bool   `json:"active"`
}

// ProfilePatch carries the fields an update may change. Nil means leave
// untouched.
type ProfilePatch struct {
	Email       *string `json:"email,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
}

// AthletePage is one page of the athlete roster.
type AthletePage struct {
	Athletes []AthleteSummary `json:"athletes"`
	Page     int              `json:"page"`
	Total    int64            `json:"total"`
}

// AthleteSummary is a roster row.
type AthleteSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Sport    string `json:"sport"`
	Verified bool   `json:"verified"`
}

// InvestorPage is one page of the investor roster.
type InvestorPage struct {
	Investors []InvestorSummary `json:"investors"`
	Page      int               `json:"page"`
	Total     int64             `json:"total"`
}

// InvestorSummary is a roster row.
type InvestorSummary struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	CommittedCents int64  `json:"committed_cents"`
}

// BulkActivationResult reports which users the identity service activated.
type BulkActivationResult struct {
	Activated []int64 `json:"activated"`
}

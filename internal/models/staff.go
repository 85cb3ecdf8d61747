package models

// StaffContext is the acting staff identity and branch scope supplied by the
// auth boundary. The core trusts it; there is no independent authorization
// logic below the middleware.
type StaffContext struct {
	UserID   string `json:"user_id"`
	BranchID string `json:"branch_id"`
	Role     string `json:"role"`
}

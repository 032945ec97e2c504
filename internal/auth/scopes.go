package auth

// Known OAuth scopes used by the API.
const (
	ScopeRunsWrite       = "runs:write"
	ScopeRunsRead        = "runs:read"
	ScopeLeaderboardRead = "leaderboard:read"
)

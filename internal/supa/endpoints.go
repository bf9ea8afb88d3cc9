package supa

// Auth API endpoint paths, relative to the project URL
const (
	SignupPath      = "/auth/v1/signup"
	RecoverPath     = "/auth/v1/recover"
	TokenPath       = "/auth/v1/token"
	UserPath        = "/auth/v1/user"
	LogoutPath      = "/auth/v1/logout"
	pkceGrantType   = "pkce"
	challengeMethod = "s256"
	redirectToParam = "redirect_to"
	grantTypeParam  = "grant_type"
)

package utils

const (
	OrganizationName                      = "Learnly"
	CORSLowSecurityAllowedOriginLocalhost = "http://localhost:*"

	// Token claim defaults shared by every service that reads our tokens.
	DefaultTokenIssuer   = "learnly-auth"
	DefaultTokenAudience = "learnly-api"
)

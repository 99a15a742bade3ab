package testutil

// FixedTokenGenerator returns the same run token on every call.
//
// Used to make conversion history records byte-identical across test runs.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a fixed generator. An empty token
// falls back to "test-run-default".
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = "test-run-default"
	}
	return &FixedTokenGenerator{token: token}
}

// Generate returns the fixed token.
func (g *FixedTokenGenerator) Generate() string {
	return g.token
}

package util

import "golang.org/x/oauth2"

// NewPKCE returns a fresh code verifier and its S256 challenge
func NewPKCE() (verifier, challenge string) {
	verifier = oauth2.GenerateVerifier()
	return verifier, oauth2.S256ChallengeFromVerifier(verifier)
}

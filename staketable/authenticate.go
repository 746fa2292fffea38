package staketable

// Authenticator verifies the embedded signatures of a V2 event against its
// declared account. The BLS/Schnorr cryptographic primitives themselves are
// an external collaborator (spec.md §1) — the core depends only on this
// narrow capability so tests can substitute a stub without linking a real
// curve library.
type Authenticator interface {
	// AuthenticateRegistration verifies that e's BLS and Schnorr signatures
	// both cover e.Account.
	AuthenticateRegistration(e RegisterV2Event) error
	// AuthenticateKeyUpdate verifies that e's BLS and Schnorr signatures
	// both cover e.Account.
	AuthenticateKeyUpdate(e KeyUpdateV2Event) error
}

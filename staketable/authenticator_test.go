package staketable

import "errors"

// fakeAuthenticator treats a signature as valid unless it is exactly
// []byte("bad"), which lets tests exercise both the success and
// AuthenticationFailed paths without any real BLS/Schnorr implementation
// (those primitives are an external collaborator per spec.md §1).
type fakeAuthenticator struct{}

func (fakeAuthenticator) AuthenticateRegistration(e RegisterV2Event) error {
	if string(e.BLSSig) == "bad" || string(e.SchnorrSig) == "bad" {
		return errors.New("signature does not cover declared account")
	}
	return nil
}

func (fakeAuthenticator) AuthenticateKeyUpdate(e KeyUpdateV2Event) error {
	if string(e.BLSSig) == "bad" || string(e.SchnorrSig) == "bad" {
		return errors.New("signature does not cover declared account")
	}
	return nil
}

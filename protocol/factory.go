package protocol

import (
	"fmt"

	"github.com/cyberinferno/gamenet/codec"
)

// Factory builds and parses every message of the session protocol. Codecs
// are resolved from the registry once, when the factory is created.
type Factory struct {
	token        codec.Codec[Token]
	verification codec.Codec[TokenVerification]
	versionCheck codec.Codec[VersionCheck]
	credentials  codec.Codec[Credentials]
	account      codec.Codec[TemporaryAccount]
	accountRes   codec.Codec[TemporaryAccountResult]
	validation   codec.Codec[AccountValidation]
}

// NewFactory creates a Factory backed by the codecs of r.
//
// Parameters:
//   - r: Registry holding codecs for every protocol type, usually from NewRegistry
//
// Returns:
//   - The factory
//   - An error wrapping codec.ErrNoCodec if a codec is missing
func NewFactory(r *codec.Registry) (*Factory, error) {
	f := &Factory{}
	var err error

	if f.token, err = codec.Lookup[Token](r); err != nil {
		return nil, fmt.Errorf("protocol factory: %w", err)
	}
	if f.verification, err = codec.Lookup[TokenVerification](r); err != nil {
		return nil, fmt.Errorf("protocol factory: %w", err)
	}
	if f.versionCheck, err = codec.Lookup[VersionCheck](r); err != nil {
		return nil, fmt.Errorf("protocol factory: %w", err)
	}
	if f.credentials, err = codec.Lookup[Credentials](r); err != nil {
		return nil, fmt.Errorf("protocol factory: %w", err)
	}
	if f.account, err = codec.Lookup[TemporaryAccount](r); err != nil {
		return nil, fmt.Errorf("protocol factory: %w", err)
	}
	if f.accountRes, err = codec.Lookup[TemporaryAccountResult](r); err != nil {
		return nil, fmt.Errorf("protocol factory: %w", err)
	}
	if f.validation, err = codec.Lookup[AccountValidation](r); err != nil {
		return nil, fmt.Errorf("protocol factory: %w", err)
	}

	return f, nil
}

// ConnectionRequest builds the first message a client sends to a game
// server: the token it got from the authority.
func (f *Factory) ConnectionRequest(t Token) Message[Token] {
	return Build(t, f.token, CmdConnectionRequest)
}

// ParseConnectionRequest decodes a ConnectionRequest frame.
func (f *Factory) ParseConnectionRequest(raw string) (Token, error) {
	m, err := Parse(raw, f.token, CmdConnectionRequest)
	return m.Value, err
}

// TokenVerificationRequest builds the message a game server sends to the
// authority to check a client token.
func (f *Factory) TokenVerificationRequest(t Token) Message[Token] {
	return Build(t, f.token, CmdTokenVerificationRequest)
}

// ParseTokenVerificationRequest decodes a TokenVerificationRequest frame.
func (f *Factory) ParseTokenVerificationRequest(raw string) (Token, error) {
	m, err := Parse(raw, f.token, CmdTokenVerificationRequest)
	return m.Value, err
}

// TokenVerified builds the authority's answer to a verification request.
func (f *Factory) TokenVerified(v TokenVerification) Message[TokenVerification] {
	return Build(v, f.verification, CmdTokenVerificationResponse)
}

// ParseTokenVerified decodes a TokenVerificationResponse frame.
func (f *Factory) ParseTokenVerified(raw string) (TokenVerification, error) {
	m, err := Parse(raw, f.verification, CmdTokenVerificationResponse)
	return m.Value, err
}

// VersionResponse builds the version announcement sent to an
// authenticated client.
func (f *Factory) VersionResponse(v VersionCheck) Message[VersionCheck] {
	return Build(v, f.versionCheck, CmdVersionResponse)
}

// ParseVersionResponse decodes a VersionResponse frame.
func (f *Factory) ParseVersionResponse(raw string) (VersionCheck, error) {
	m, err := Parse(raw, f.versionCheck, CmdVersionResponse)
	return m.Value, err
}

// AuthenticationRequest builds a login request for the authority.
func (f *Factory) AuthenticationRequest(c Credentials) Message[Credentials] {
	return Build(c, f.credentials, CmdAuthenticationRequest)
}

// ParseAuthenticationRequest decodes an AuthenticationRequest frame.
func (f *Factory) ParseAuthenticationRequest(raw string) (Credentials, error) {
	m, err := Parse(raw, f.credentials, CmdAuthenticationRequest)
	return m.Value, err
}

// AuthenticationResponse builds the authority's answer to a login request.
func (f *Factory) AuthenticationResponse(t Token) Message[Token] {
	return Build(t, f.token, CmdAuthenticationResponse)
}

// ParseAuthenticationResponse decodes an AuthenticationResponse frame.
func (f *Factory) ParseAuthenticationResponse(raw string) (Token, error) {
	m, err := Parse(raw, f.token, CmdAuthenticationResponse)
	return m.Value, err
}

// AccountCreation builds a temporary account creation request.
func (f *Factory) AccountCreation(a TemporaryAccount) Message[TemporaryAccount] {
	return Build(a, f.account, CmdAccountCreation)
}

// ParseAccountCreation decodes an AccountCreation request frame.
func (f *Factory) ParseAccountCreation(raw string) (TemporaryAccount, error) {
	m, err := Parse(raw, f.account, CmdAccountCreation)
	return m.Value, err
}

// AccountCreationResult builds the answer to an account creation. It shares
// the AccountCreation command with the request.
func (f *Factory) AccountCreationResult(r TemporaryAccountResult) Message[TemporaryAccountResult] {
	return Build(r, f.accountRes, CmdAccountCreation)
}

// ParseAccountCreationResult decodes an account creation answer.
func (f *Factory) ParseAccountCreationResult(raw string) (TemporaryAccountResult, error) {
	m, err := Parse(raw, f.accountRes, CmdAccountCreation)
	return m.Value, err
}

// AccountValidation builds an account validation request.
func (f *Factory) AccountValidation(a AccountValidation) Message[AccountValidation] {
	return Build(a, f.validation, CmdAccountValidation)
}

// ParseAccountValidation decodes an AccountValidation frame.
func (f *Factory) ParseAccountValidation(raw string) (AccountValidation, error) {
	m, err := Parse(raw, f.validation, CmdAccountValidation)
	return m.Value, err
}

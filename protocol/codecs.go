package protocol

import (
	"fmt"
	"strings"

	"github.com/cyberinferno/gamenet/codec"
)

var (
	intCodec    codec.Int
	int64Codec  codec.Int64
	boolCodec   codec.Bool
	stringCodec codec.String
)

// PlayerIDCodec encodes a PlayerID as a base 10 integer.
type PlayerIDCodec struct{}

func (PlayerIDCodec) Encode(p PlayerID) string {
	return intCodec.Encode(int32(p))
}

func (PlayerIDCodec) Decode(s string) (PlayerID, error) {
	v, err := intCodec.Decode(s)
	return PlayerID(v), err
}

// TokenStatusCodec encodes a TokenStatus by ordinal.
type TokenStatusCodec struct{}

func (TokenStatusCodec) Encode(s TokenStatus) string {
	return intCodec.Encode(int32(s))
}

func (TokenStatusCodec) Decode(s string) (TokenStatus, error) {
	v, err := intCodec.Decode(s)
	if err != nil {
		return 0, err
	}

	status := TokenStatus(v)
	if !status.Valid() {
		return 0, mappingError("unknown token status %d", v)
	}

	return status, nil
}

// TokenCodec encodes a Token as player@key@status.
type TokenCodec struct{}

func (TokenCodec) Encode(t Token) string {
	return codec.Join(
		PlayerIDCodec{}.Encode(t.Player),
		intCodec.Encode(t.Key),
		TokenStatusCodec{}.Encode(t.Status),
	)
}

func (TokenCodec) Decode(s string) (Token, error) {
	f, err := codec.Fields(s, 3)
	if err != nil {
		return Token{}, err
	}

	player, err := PlayerIDCodec{}.Decode(f[0])
	if err != nil {
		return Token{}, err
	}
	key, err := intCodec.Decode(f[1])
	if err != nil {
		return Token{}, err
	}
	status, err := TokenStatusCodec{}.Decode(f[2])
	if err != nil {
		return Token{}, err
	}

	return Token{Player: player, Key: key, Status: status}, nil
}

// TokenVerificationCodec encodes a TokenVerification as player@authenticated.
type TokenVerificationCodec struct{}

func (TokenVerificationCodec) Encode(v TokenVerification) string {
	return codec.Join(PlayerIDCodec{}.Encode(v.Player), boolCodec.Encode(v.Authenticated))
}

func (TokenVerificationCodec) Decode(s string) (TokenVerification, error) {
	f, err := codec.Fields(s, 2)
	if err != nil {
		return TokenVerification{}, err
	}

	player, err := PlayerIDCodec{}.Decode(f[0])
	if err != nil {
		return TokenVerification{}, err
	}
	ok, err := boolCodec.Decode(f[1])
	if err != nil {
		return TokenVerification{}, err
	}

	return TokenVerification{Player: player, Authenticated: ok}, nil
}

// VersionCodec encodes a Version as major@minor@sub@rev@type.
type VersionCodec struct{}

func (VersionCodec) Encode(v Version) string {
	return codec.Join(
		intCodec.Encode(v.Major),
		intCodec.Encode(v.Minor),
		intCodec.Encode(v.Sub),
		intCodec.Encode(v.Rev),
		intCodec.Encode(int32(v.Type)),
	)
}

func (VersionCodec) Decode(s string) (Version, error) {
	f, err := codec.Fields(s, 5)
	if err != nil {
		return Version{}, err
	}

	var n [5]int32
	for i := range f {
		if n[i], err = intCodec.Decode(f[i]); err != nil {
			return Version{}, err
		}
	}

	t := VersionType(n[4])
	if t < VersionAlpha || t > VersionRelease {
		return Version{}, mappingError("unknown version type %d", n[4])
	}

	return Version{Major: n[0], Minor: n[1], Sub: n[2], Rev: n[3], Type: t}, nil
}

// VersionCheckCodec encodes a VersionCheck as the version followed by the
// server time. Decoding splits on the last inner separator.
type VersionCheckCodec struct{}

func (VersionCheckCodec) Encode(v VersionCheck) string {
	return codec.Join(VersionCodec{}.Encode(v.Version), int64Codec.Encode(v.ServerTime))
}

func (VersionCheckCodec) Decode(s string) (VersionCheck, error) {
	i := strings.LastIndex(s, codec.InnerSeparator)
	if i < 0 {
		return VersionCheck{}, mappingError("version check %q has no server time", s)
	}

	version, err := VersionCodec{}.Decode(s[:i])
	if err != nil {
		return VersionCheck{}, err
	}
	at, err := int64Codec.Decode(s[i+len(codec.InnerSeparator):])
	if err != nil {
		return VersionCheck{}, err
	}

	return VersionCheck{Version: version, ServerTime: at}, nil
}

// CredentialsCodec encodes Credentials as login@password.
type CredentialsCodec struct{}

func (CredentialsCodec) Encode(c Credentials) string {
	return codec.Join(stringCodec.Encode(c.Login), stringCodec.Encode(c.Password))
}

func (CredentialsCodec) Decode(s string) (Credentials, error) {
	f, err := codec.Fields(s, 2)
	if err != nil {
		return Credentials{}, err
	}

	login, _ := stringCodec.Decode(f[0])
	password, _ := stringCodec.Decode(f[1])
	return Credentials{Login: login, Password: password}, nil
}

// TemporaryAccountCodec encodes a TemporaryAccount as login@password@email.
type TemporaryAccountCodec struct{}

func (TemporaryAccountCodec) Encode(a TemporaryAccount) string {
	return codec.Join(
		stringCodec.Encode(a.Login),
		stringCodec.Encode(a.Password),
		stringCodec.Encode(a.Email),
	)
}

func (TemporaryAccountCodec) Decode(s string) (TemporaryAccount, error) {
	f, err := codec.Fields(s, 3)
	if err != nil {
		return TemporaryAccount{}, err
	}

	login, _ := stringCodec.Decode(f[0])
	password, _ := stringCodec.Decode(f[1])
	email, _ := stringCodec.Decode(f[2])
	return TemporaryAccount{Login: login, Password: password, Email: email}, nil
}

// TemporaryAccountResultCodec encodes the seven failure flags followed by
// the validation token.
type TemporaryAccountResultCodec struct{}

func (TemporaryAccountResultCodec) Encode(r TemporaryAccountResult) string {
	return codec.Join(
		boolCodec.Encode(r.AccountExisting),
		boolCodec.Encode(r.EmailExisting),
		boolCodec.Encode(r.EmailMissing),
		boolCodec.Encode(r.EmailInvalid),
		boolCodec.Encode(r.InvalidLogin),
		boolCodec.Encode(r.InvalidPassword),
		boolCodec.Encode(r.TechnicalIssue),
		stringCodec.Encode(r.Token),
	)
}

func (TemporaryAccountResultCodec) Decode(s string) (TemporaryAccountResult, error) {
	f, err := codec.Fields(s, 8)
	if err != nil {
		return TemporaryAccountResult{}, err
	}

	var flags [7]bool
	for i := range flags {
		if flags[i], err = boolCodec.Decode(f[i]); err != nil {
			return TemporaryAccountResult{}, err
		}
	}
	token, _ := stringCodec.Decode(f[7])

	return TemporaryAccountResult{
		AccountExisting: flags[0],
		EmailExisting:   flags[1],
		EmailMissing:    flags[2],
		EmailInvalid:    flags[3],
		InvalidLogin:    flags[4],
		InvalidPassword: flags[5],
		TechnicalIssue:  flags[6],
		Token:           token,
	}, nil
}

// AccountValidationCodec encodes an AccountValidation as login@token.
type AccountValidationCodec struct{}

func (AccountValidationCodec) Encode(a AccountValidation) string {
	return codec.Join(stringCodec.Encode(a.Login), stringCodec.Encode(a.Token))
}

func (AccountValidationCodec) Decode(s string) (AccountValidation, error) {
	f, err := codec.Fields(s, 2)
	if err != nil {
		return AccountValidation{}, err
	}

	login, _ := stringCodec.Decode(f[0])
	token, _ := stringCodec.Decode(f[1])
	return AccountValidation{Login: login, Token: token}, nil
}

// NewRegistry returns a registry holding the primitive codecs and every
// codec defined in this package. Build it once at startup and share it.
func NewRegistry() *codec.Registry {
	r := codec.NewRegistry()

	codec.Register[int32](r, intCodec)
	codec.Register[int64](r, int64Codec)
	codec.Register[bool](r, boolCodec)
	codec.Register[string](r, stringCodec)

	codec.Register[PlayerID](r, PlayerIDCodec{})
	codec.Register[[]PlayerID](r, codec.NewList[PlayerID](PlayerIDCodec{}))
	codec.Register[TokenStatus](r, TokenStatusCodec{})
	codec.Register[Token](r, TokenCodec{})
	codec.Register[TokenVerification](r, TokenVerificationCodec{})
	codec.Register[Version](r, VersionCodec{})
	codec.Register[VersionCheck](r, VersionCheckCodec{})
	codec.Register[Credentials](r, CredentialsCodec{})
	codec.Register[TemporaryAccount](r, TemporaryAccountCodec{})
	codec.Register[TemporaryAccountResult](r, TemporaryAccountResultCodec{})
	codec.Register[AccountValidation](r, AccountValidationCodec{})

	return r
}

func mappingError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMapping, fmt.Sprintf(format, args...))
}

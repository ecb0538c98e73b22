package protocol

import (
	"fmt"
	"strconv"
	"time"
)

// PlayerID identifies a player. Equality is by value.
type PlayerID int32

// NoPlayer is the identity carried by sessions that are not bound to a
// player, including the shared disconnected session.
const NoPlayer PlayerID = -5

// String implements fmt.Stringer.
func (p PlayerID) String() string {
	return strconv.Itoa(int(p))
}

// TokenStatus is the authentication state carried by a Token.
type TokenStatus int32

const (
	TokenPending TokenStatus = iota
	TokenAuthenticated
	TokenRejected
	TokenBanned
	TokenTooManyFailures
)

// Valid reports whether s is a known status.
func (s TokenStatus) Valid() bool {
	return s >= TokenPending && s <= TokenTooManyFailures
}

func (s TokenStatus) String() string {
	switch s {
	case TokenPending:
		return "pending"
	case TokenAuthenticated:
		return "authenticated"
	case TokenRejected:
		return "rejected"
	case TokenBanned:
		return "banned"
	case TokenTooManyFailures:
		return "too-many-failures"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Token is produced by an authentication authority and carried opaquely
// through the connection handshake.
type Token struct {
	Player PlayerID
	Key    int32
	Status TokenStatus
}

// IsAuthenticated reports whether the authority accepted the token.
func (t Token) IsAuthenticated() bool {
	return t.Status == TokenAuthenticated
}

func (t Token) String() string {
	return fmt.Sprintf("token{player=%d status=%s}", t.Player, t.Status)
}

// TokenVerification is the authority's answer to a token check.
type TokenVerification struct {
	Player        PlayerID
	Authenticated bool
}

// VersionType is the release channel of a Version.
type VersionType int32

const (
	VersionAlpha VersionType = iota
	VersionBeta
	VersionRelease
)

func (t VersionType) String() string {
	switch t {
	case VersionAlpha:
		return "alpha"
	case VersionBeta:
		return "beta"
	case VersionRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Version is a semantic version with a revision number and channel.
type Version struct {
	Major int32
	Minor int32
	Sub   int32
	Rev   int32
	Type  VersionType
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d-%s", v.Major, v.Minor, v.Sub, v.Rev, v.Type)
}

// VersionCheck is sent by a server once a session is authenticated so the
// client can check compatibility and correct its clock.
type VersionCheck struct {
	Version Version
	// ServerTime is the server wall clock in Unix milliseconds.
	ServerTime int64
}

// Time returns ServerTime as a time.Time.
func (v VersionCheck) Time() time.Time {
	return time.UnixMilli(v.ServerTime)
}

// Credentials are sent to the authority to obtain a token.
type Credentials struct {
	Login    string
	Password string
}

// TemporaryAccount is an account awaiting validation.
type TemporaryAccount struct {
	Login    string
	Password string
	Email    string
}

// TemporaryAccountResult reports why an account creation failed, or carries
// the validation token when it succeeded.
type TemporaryAccountResult struct {
	AccountExisting bool
	EmailExisting   bool
	EmailMissing    bool
	EmailInvalid    bool
	InvalidLogin    bool
	InvalidPassword bool
	TechnicalIssue  bool
	Token           string
}

// HasError reports whether any failure flag is set.
func (r TemporaryAccountResult) HasError() bool {
	return r.AccountExisting || r.EmailExisting || r.EmailMissing || r.EmailInvalid ||
		r.InvalidLogin || r.InvalidPassword || r.TechnicalIssue
}

// AccountValidation confirms a temporary account with its token.
type AccountValidation struct {
	Login string
	Token string
}

package protocol

import "strconv"

// Command identifies the shape of a message. The namespace is flat and
// shared by both peers.
type Command int

const (
	// CmdVersionResponse carries the server version and clock.
	CmdVersionResponse Command = 0
	// CmdAuthenticationRequest carries login credentials to the authority.
	CmdAuthenticationRequest Command = 10
	// CmdConnectionRequest carries a token from a client to a game server.
	CmdConnectionRequest Command = 25
	// CmdAccountCreation carries a temporary account and its creation result.
	CmdAccountCreation Command = 96
	// CmdAccountValidation confirms a temporary account.
	CmdAccountValidation Command = 97
	// CmdTokenVerificationRequest asks the authority to check a token.
	CmdTokenVerificationRequest Command = 98
	// CmdTokenVerificationResponse answers a TokenVerificationRequest.
	CmdTokenVerificationResponse Command = 98
	// CmdAuthenticationResponse returns the token issued for credentials.
	CmdAuthenticationResponse Command = 99
)

// String returns a readable name for known commands.
func (c Command) String() string {
	switch c {
	case CmdVersionResponse:
		return "version-response"
	case CmdAuthenticationRequest:
		return "authentication-request"
	case CmdConnectionRequest:
		return "connection-request"
	case CmdAccountCreation:
		return "account-creation"
	case CmdAccountValidation:
		return "account-validation"
	case CmdTokenVerificationRequest:
		return "token-verification"
	case CmdAuthenticationResponse:
		return "authentication-response"
	default:
		return "command-" + strconv.Itoa(int(c))
	}
}

package domain

import (
	"fmt"

	"github.com/pendergraft/explorer-cache/internal/explorer"
)

// abiNotVerified is the result string explorers return from getabi for
// contracts without published source.
const abiNotVerified = "Contract source code not verified"

type verifier func(explorer.Response) bool

func verifierFor(action string) (verifier, error) {
	switch action {
	case ActionGetSourceCode:
		return sourceCodeVerified, nil
	case ActionGetABI:
		return abiVerified, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAction, action)
	}
}

// sourceCodeVerified reports whether the first getsourcecode entry carries source.
func sourceCodeVerified(resp explorer.Response) bool {
	env, err := resp.Envelope()
	if err != nil {
		return false
	}
	entries, ok := env.SourceCodeEntries()
	return ok && len(entries) > 0 && entries[0].SourceCode != ""
}

// abiVerified reports whether result is anything but the not-verified string.
func abiVerified(resp explorer.Response) bool {
	env, err := resp.Envelope()
	if err != nil || len(env.Result) == 0 {
		return false
	}
	s, ok := env.ResultString()
	return !ok || s != abiNotVerified
}

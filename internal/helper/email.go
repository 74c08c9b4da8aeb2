package helper

import (
	"net/mail"
	"strings"
)

// IdentityEmail reduces a participant address to the form used as a merge
// key. Display-name forms and mailto links collapse to the bare address, and
// a plus tag in the local part is dropped so job-board aliases of one
// candidate resolve together.
func IdentityEmail(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "mailto:"), "MAILTO:")
	if raw == "" {
		return ""
	}

	address := raw
	if parsed, err := mail.ParseAddress(raw); err == nil {
		address = parsed.Address
	}
	address = strings.ToLower(address)

	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return ""
	}

	local, domain := address[:at], address[at+1:]
	if plus := strings.IndexByte(local, '+'); plus > 0 {
		local = local[:plus]
	}

	return local + "@" + domain
}

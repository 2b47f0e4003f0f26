package transport

import "strings"

// JID address conventions of the chat network.
const (
	UserServer  = "s.whatsapp.net"
	GroupServer = "g.us"
)

// IsGroupJID reports whether the address denotes a group endpoint.
func IsGroupJID(jid string) bool {
	return strings.HasSuffix(jid, "@"+GroupServer)
}

// UserJID fully qualifies a target as an individual address. Targets that
// already carry a domain are kept as-is.
func UserJID(target string) string {
	if strings.Contains(target, "@") {
		return target
	}
	return target + "@" + UserServer
}

// GroupJID fully qualifies a target as a group address.
func GroupJID(target string) string {
	if strings.Contains(target, "@") {
		return target
	}
	return target + "@" + GroupServer
}

// BareNumber derives the numeric portion of a JID by stripping the server
// suffix and any device-session suffix (":N").
func BareNumber(jid string) string {
	user := jid
	if i := strings.Index(user, "@"); i >= 0 {
		user = user[:i]
	}
	if i := strings.Index(user, ":"); i >= 0 {
		user = user[:i]
	}
	return user
}

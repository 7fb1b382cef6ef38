package gatekeep

// IPRuleMode selects how the IP rule lists are interpreted.
type IPRuleMode string

const (
	// ModeAllowlist admits only listed IPs (when the list is non-empty).
	ModeAllowlist IPRuleMode = "allowlist"
	// ModeBlocklist rejects listed IPs.
	ModeBlocklist IPRuleMode = "blocklist"
)

// IPRules is the static allow/block filter applied after authentication.
// Empty lists are no-ops in either mode. Verdicts are pure functions of
// (rules, ip), so repeated application yields the same result.
type IPRules struct {
	Allowlist []string   `json:"allowlist"`
	Blocklist []string   `json:"blocklist"`
	Mode      IPRuleMode `json:"mode"`
}

// Allowed reports whether ip passes the filter. The string reason is
// non-empty only on rejection and is the client-facing error message.
func (r IPRules) Allowed(ip string) (bool, string) {
	switch r.Mode {
	case ModeAllowlist:
		if len(r.Allowlist) == 0 {
			return true, ""
		}
		for _, a := range r.Allowlist {
			if a == ip {
				return true, ""
			}
		}
		return false, "IP not in allowlist"
	case ModeBlocklist:
		for _, b := range r.Blocklist {
			if b == ip {
				return false, "IP is blocked"
			}
		}
		return true, ""
	default:
		return true, ""
	}
}

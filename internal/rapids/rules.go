package rapids

import (
	"fmt"

	"github.com/samber/lo"
)

// Rule checks one aspect of a packet and returns a description of the
// problem, or "" when the packet passes.
type Rule func(p *Packet) string

// DemandAllOrAny requires key to be an array holding at least one of values.
func DemandAllOrAny(key string, values ...string) Rule {
	return func(p *Packet) string {
		if !p.Has(key) {
			return fmt.Sprintf("missing demanded key %s", key)
		}
		if !lo.Some(p.Strings(key), values) {
			return fmt.Sprintf("%s does not contain any of %v", key, values)
		}
		return ""
	}
}

// Forbid requires keys to be absent or null.
func Forbid(keys ...string) Rule {
	return func(p *Packet) string {
		present := lo.Filter(keys, func(key string, _ int) bool { return p.Has(key) })
		if len(present) > 0 {
			return fmt.Sprintf("forbidden keys present: %v", present)
		}
		return ""
	}
}

// RequireKey requires keys to be present and non-null.
func RequireKey(keys ...string) Rule {
	return func(p *Packet) string {
		missing := lo.Reject(keys, func(key string, _ int) bool { return p.Has(key) })
		if len(missing) > 0 {
			return fmt.Sprintf("missing required keys: %v", missing)
		}
		return ""
	}
}

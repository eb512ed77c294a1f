package shared

// Capabilities gating sensitive surfaces.
const (
	CapViewSensitiveFinancials = "financials.view_sensitive"
	CapManageAutomation        = "automation.manage"
	CapApproveQuotations       = "quotations.approve"
)

// roleCapabilities is the static role to capability table. Field-level
// filtering consults this table instead of per-entity allowlists.
var roleCapabilities = map[string][]string{
	"admin": {
		CapViewSensitiveFinancials,
		CapManageAutomation,
		CapApproveQuotations,
	},
	"manager": {
		CapViewSensitiveFinancials,
		CapApproveQuotations,
	},
	"accountant": {
		CapViewSensitiveFinancials,
	},
	"sales": {},
	"portal": {},
}

// HasCapability reports whether the role carries the capability.
// Unknown roles have no capabilities.
func HasCapability(role, capability string) bool {
	for _, cap := range roleCapabilities[role] {
		if cap == capability {
			return true
		}
	}
	return false
}

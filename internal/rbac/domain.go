// Package rbac gates HTTP routes on a fixed role-capability table. The
// workflow engine enforces per-transition role rules itself; this layer
// only keeps whole route groups away from roles that can never use them.
package rbac

import (
	"strings"

	"github.com/procura-erp/procura/internal/workflow"
)

// Capability names an atomic permission checked at the route level.
const (
	CapDocumentsView     = "documents.view"
	CapDocumentsCreate   = "documents.create"
	CapDocumentsAct      = "documents.act"
	CapQuotesSubmit      = "quotes.submit"
	CapQuotesDecide      = "quotes.decide"
	CapItemsView         = "items.view"
	CapItemsManage       = "items.manage"
	CapInventoryAdjust   = "inventory.adjust"
	CapInventoryWriteoff = "inventory.writeoff"
	CapProjectionsView   = "projections.view"
)

var roleCapabilities = map[workflow.Role][]string{
	workflow.RoleEmployee: {
		CapDocumentsView, CapDocumentsCreate, CapDocumentsAct,
		CapItemsView, CapInventoryAdjust, CapProjectionsView,
	},
	workflow.RoleManager: {
		CapDocumentsView, CapDocumentsCreate, CapDocumentsAct,
		CapQuotesDecide, CapItemsView, CapItemsManage,
		CapInventoryAdjust, CapInventoryWriteoff, CapProjectionsView,
	},
	workflow.RoleSupplier: {
		CapDocumentsView, CapQuotesSubmit,
	},
	workflow.RoleClient: {
		CapDocumentsView, CapDocumentsCreate, CapProjectionsView,
	},
	workflow.RoleSystem: {
		CapDocumentsView, CapDocumentsCreate, CapDocumentsAct,
		CapItemsView, CapItemsManage, CapInventoryAdjust, CapProjectionsView,
	},
}

// Capabilities returns the capability set granted to a role.
func Capabilities(role workflow.Role) []string {
	caps := roleCapabilities[role]
	out := make([]string, len(caps))
	copy(out, caps)
	return out
}

// Has reports whether the role holds the capability.
func Has(role workflow.Role, capability string) bool {
	capability = strings.TrimSpace(strings.ToLower(capability))
	for _, c := range roleCapabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}

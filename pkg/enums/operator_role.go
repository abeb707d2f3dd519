package enums

// OperatorRole identifies who is acting on the scheduling engine. SYSTEM is
// reserved for worker-initiated operations.
type OperatorRole string

const (
	OperatorRoleDispatcher OperatorRole = "dispatcher"
	OperatorRoleAdmin      OperatorRole = "admin"
	OperatorRoleSystem     OperatorRole = "system"
)

var validOperatorRoles = []OperatorRole{
	OperatorRoleDispatcher,
	OperatorRoleAdmin,
	OperatorRoleSystem,
}

func (r OperatorRole) IsValid() bool {
	for _, candidate := range validOperatorRoles {
		if r == candidate {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (r OperatorRole) String() string { return string(r) }

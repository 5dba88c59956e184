package enums

// UserRole is the role claim carried in access tokens.
type UserRole string

const (
	UserRoleUser        UserRole = "user"
	UserRoleOwner       UserRole = "owner"
	UserRoleDeliveryBoy UserRole = "deliveryBoy"
)

var userRoles = newSet("user role",
	UserRoleUser,
	UserRoleOwner,
	UserRoleDeliveryBoy,
)

func (s UserRole) String() string {
	return string(s)
}

// IsValid reports whether the value is a known UserRole.
func (s UserRole) IsValid() bool {
	return userRoles.contains(s)
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	return userRoles.parse(value)
}

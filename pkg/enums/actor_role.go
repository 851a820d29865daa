package enums

import "fmt"

// ActorRole is carried in access tokens and gates route groups.
type ActorRole string

const (
	ActorRoleDelivery ActorRole = "delivery"
	ActorRoleCustomer ActorRole = "customer"
	ActorRoleShop     ActorRole = "shop"
	ActorRoleAdmin    ActorRole = "admin"

	// ActorRoleService is never minted into tokens; the service-token middleware assigns it.
	ActorRoleService ActorRole = "service"
)

var validActorRoles = []ActorRole{
	ActorRoleDelivery,
	ActorRoleCustomer,
	ActorRoleShop,
	ActorRoleAdmin,
}

func (r ActorRole) String() string {
	return string(r)
}

func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw strings into ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}

package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// publicMetadataClaim is the token claim carrying platform role data. The
// identity provider embeds the user's public metadata under this name via
// its session token template.
const publicMetadataClaim = "publicMetadata"

// PrimaryRoleFromClaims returns the primary role embedded in the token's
// public metadata, defaulting to member when absent or malformed.
func PrimaryRoleFromClaims(claims jwt.MapClaims) string {
	meta := publicMetadata(claims)
	if role, ok := meta["primary_role"].(string); ok && role != "" {
		return role
	}
	return RoleMember
}

// OrgRolesFromClaims returns the organization-role map embedded in the
// token's public metadata, normalized to OrgRoleMap. The result is empty,
// never nil, when the claim is absent or malformed.
func OrgRolesFromClaims(claims jwt.MapClaims) OrgRoleMap {
	meta := publicMetadata(claims)
	raw, _ := meta["organization_roles"].(map[string]any)
	return NormalizeOrgRoles(raw)
}

func publicMetadata(claims jwt.MapClaims) map[string]any {
	meta, _ := claims[publicMetadataClaim].(map[string]any)
	return meta
}

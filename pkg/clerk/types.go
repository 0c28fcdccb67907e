// SPDX-FileCopyrightText: Copyright 2025 Guidepost, Inc.
// SPDX-License-Identifier: Apache-2.0

package clerk

// EmailAddress is one email identity attached to a user record.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// User is the identity provider's user record, reduced to the fields the
// platform consumes.
type User struct {
	ID                    string         `json:"id"`
	FirstName             string         `json:"first_name"`
	LastName              string         `json:"last_name"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	PublicMetadata        map[string]any `json:"public_metadata"`
}

// PrimaryEmailAddress resolves the user's primary email address, or returns
// the empty string when the record has none.
func (u *User) PrimaryEmailAddress() string {
	for _, addr := range u.EmailAddresses {
		if addr.ID == u.PrimaryEmailAddressID {
			return addr.EmailAddress
		}
	}
	return ""
}

// Organization is the organization summary embedded in a membership.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PublicUserData is the user snapshot embedded in a membership.
type PublicUserData struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// OrganizationMembership ties a user to an organization with a role.
// Role values are normalized: the wire "org:" prefix is stripped by the
// client before a membership is returned.
type OrganizationMembership struct {
	Organization   Organization   `json:"organization"`
	Role           string         `json:"role"`
	PublicUserData PublicUserData `json:"public_user_data"`
}

// membershipList is the wire shape of the membership listing endpoint.
type membershipList struct {
	Data       []OrganizationMembership `json:"data"`
	TotalCount int                      `json:"total_count"`
}

package dto

import (
	"time"

	"github.com/allisson/lightldap/internal/directory/domain"
)

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	DisplayName string            `json:"display_name"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	UUID        string            `json:"uuid"`
	Attributes  map[string]string `json:"attributes"`
	Groups      []string          `json:"groups"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// MapUserToResponse converts a domain user to an API response.
func MapUserToResponse(user *domain.User) UserResponse {
	attributes := user.Attributes
	if attributes == nil {
		attributes = map[string]string{}
	}
	groups := user.Groups
	if groups == nil {
		groups = []string{}
	}
	return UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		UUID:        user.UUID.String(),
		Attributes:  attributes,
		Groups:      groups,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

// ListUsersResponse represents a paginated list of users.
type ListUsersResponse struct {
	Data []UserResponse `json:"data"`
}

// MapUsersToListResponse converts a slice of domain users to a list API response.
func MapUsersToListResponse(users []*domain.User) ListUsersResponse {
	data := make([]UserResponse, 0, len(users))
	for _, user := range users {
		data = append(data, MapUserToResponse(user))
	}
	return ListUsersResponse{Data: data}
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	UUID        string    `json:"uuid"`
	Members     []string  `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
}

// MapGroupToResponse converts a domain group to an API response.
func MapGroupToResponse(group *domain.Group) GroupResponse {
	members := group.Members
	if members == nil {
		members = []string{}
	}
	return GroupResponse{
		ID:          group.ID,
		DisplayName: group.DisplayName,
		UUID:        group.UUID.String(),
		Members:     members,
		CreatedAt:   group.CreatedAt,
	}
}

// ListGroupsResponse represents a paginated list of groups.
type ListGroupsResponse struct {
	Data []GroupResponse `json:"data"`
}

// MapGroupsToListResponse converts a slice of domain groups to a list API response.
func MapGroupsToListResponse(groups []*domain.Group) ListGroupsResponse {
	data := make([]GroupResponse, 0, len(groups))
	for _, group := range groups {
		data = append(data, MapGroupToResponse(group))
	}
	return ListGroupsResponse{Data: data}
}

// AttributeResponse represents an attribute declaration in API responses.
type AttributeResponse struct {
	Name       string    `json:"name"`
	IsEditable bool      `json:"is_editable"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListAttributesResponse represents the attribute schema.
type ListAttributesResponse struct {
	Data []AttributeResponse `json:"data"`
}

// MapAttributeToResponse converts an attribute declaration to an API response.
func MapAttributeToResponse(attribute *domain.AttributeSchema) AttributeResponse {
	return AttributeResponse{
		Name:       attribute.Name,
		IsEditable: attribute.IsEditable,
		CreatedAt:  attribute.CreatedAt,
	}
}

// MapAttributesToListResponse converts attribute declarations to a list API response.
func MapAttributesToListResponse(attributes []*domain.AttributeSchema) ListAttributesResponse {
	data := make([]AttributeResponse, 0, len(attributes))
	for _, attribute := range attributes {
		data = append(data, MapAttributeToResponse(attribute))
	}
	return ListAttributesResponse{Data: data}
}

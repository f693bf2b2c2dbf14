// Package dto provides data transfer objects for the directory endpoints.
package dto

import (
	validation "github.com/jellydator/validation"

	"github.com/allisson/lightldap/internal/directory/domain"
	customValidation "github.com/allisson/lightldap/internal/validation"
)

// CreateUserRequest contains the parameters for creating a user.
type CreateUserRequest struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	DisplayName string            `json:"display_name"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	Attributes  map[string]string `json:"attributes"`
}

// Validate checks if the create user request is valid.
func (r *CreateUserRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.Required, customValidation.NotBlank, validation.Length(1, 64)),
		validation.Field(&r.Email, validation.Required, customValidation.Email),
		validation.Field(&r.DisplayName, validation.Length(0, 255)),
		validation.Field(&r.FirstName, validation.Length(0, 255)),
		validation.Field(&r.LastName, validation.Length(0, 255)),
	)
}

// ToDomain converts the request into a use case input.
func (r *CreateUserRequest) ToDomain() *domain.CreateUserInput {
	return &domain.CreateUserInput{
		ID:          r.ID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Attributes:  r.Attributes,
	}
}

// UpdateUserRequest is a partial update. Absent fields are untouched; an attribute
// mapped to null is removed.
type UpdateUserRequest struct {
	Email       *string            `json:"email"`
	DisplayName *string            `json:"display_name"`
	FirstName   *string            `json:"first_name"`
	LastName    *string            `json:"last_name"`
	Attributes  map[string]*string `json:"attributes"`
}

// Validate checks if the update user request is valid.
func (r *UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.NilOrNotEmpty, customValidation.Email),
		validation.Field(&r.DisplayName, validation.Length(0, 255)),
		validation.Field(&r.FirstName, validation.Length(0, 255)),
		validation.Field(&r.LastName, validation.Length(0, 255)),
	)
}

// ToDomain converts the request into a use case input.
func (r *UpdateUserRequest) ToDomain() *domain.UpdateUserInput {
	input := &domain.UpdateUserInput{
		Email:       r.Email,
		DisplayName: r.DisplayName,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
	}
	if len(r.Attributes) > 0 {
		input.Attributes = make(map[string]domain.AttributePatch, len(r.Attributes))
		for name, value := range r.Attributes {
			if value == nil {
				input.Attributes[name] = domain.UnsetAttribute()
			} else {
				input.Attributes[name] = domain.SetAttribute(*value)
			}
		}
	}
	return input
}

// ChangedFields lists the built-in fields and attribute names the request touches.
func (r *UpdateUserRequest) ChangedFields() (fields, attributes []string) {
	if r.Email != nil {
		fields = append(fields, domain.AttrEmail)
	}
	if r.DisplayName != nil {
		fields = append(fields, domain.AttrDisplayName)
	}
	if r.FirstName != nil {
		fields = append(fields, domain.AttrFirstName)
	}
	if r.LastName != nil {
		fields = append(fields, domain.AttrLastName)
	}
	for name := range r.Attributes {
		attributes = append(attributes, name)
	}
	return fields, attributes
}

// CreateGroupRequest contains the parameters for creating a group.
type CreateGroupRequest struct {
	DisplayName string `json:"display_name"`
}

// Validate checks if the create group request is valid.
func (r *CreateGroupRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.DisplayName, validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
	)
}

// CreateAttributeRequest declares a custom user attribute.
type CreateAttributeRequest struct {
	Name       string `json:"name"`
	IsEditable bool   `json:"is_editable"`
}

// Validate checks if the create attribute request is valid.
func (r *CreateAttributeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, customValidation.AttributeName),
	)
}

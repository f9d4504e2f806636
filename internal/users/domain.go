package users

import "time"

// User represents a user account for management.
type User struct {
	ID                int64     `json:"id"`
	Email             string    `json:"email"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	IsSuperuser       bool      `json:"is_superuser"`
	IsActive          bool      `json:"is_active"`
	RoleID            *int64    `json:"role_id"`
	BranchID          *int64    `json:"branch_id"`
	DepartmentID      *int64    `json:"department_id"`
	AvailableBranches []int64   `json:"available_branches"`
	PasswordHash      string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// UserForm is the create/update payload. Password may be left empty on
// update to keep the current one.
type UserForm struct {
	Email             string  `json:"email" validate:"required,email"`
	FirstName         string  `json:"first_name" validate:"required,max=100"`
	LastName          string  `json:"last_name" validate:"max=100"`
	Password          string  `json:"password" validate:"omitempty,min=8,max=72"`
	ConfirmPassword   string  `json:"confirm_password"`
	IsSuperuser       bool    `json:"is_superuser"`
	IsActive          *bool   `json:"is_active"`
	RoleID            *int64  `json:"role_id" validate:"omitempty,gt=0"`
	BranchID          *int64  `json:"branch_id" validate:"omitempty,gt=0"`
	DepartmentID      *int64  `json:"department_id" validate:"omitempty,gt=0"`
	AvailableBranches []int64 `json:"available_branches" validate:"dive,gt=0"`
}

package departments

import "time"

// Department groups roles; role names are unique within a department.
type Department struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DepartmentForm struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

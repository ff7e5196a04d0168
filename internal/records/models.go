package records

import "time"

// Customer is mutated under the write action class.
type Customer struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Species is organization configuration; creating one is admin-write.
type Species struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	// YieldRatio is the expected output per unit of input, in (0, 1].
	YieldRatio float64   `json:"yield_ratio"`
	CreatedAt  time.Time `json:"created_at"`
}

type CustomerInput struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type SpeciesInput struct {
	Name       string  `json:"name"`
	YieldRatio float64 `json:"yield_ratio"`
}

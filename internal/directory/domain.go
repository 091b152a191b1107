package directory

import "time"

// Employee is one entry in the identity-side employee directory. ManagerID
// is empty at the top of a reporting chain.
type Employee struct {
	ID         string
	Name       string
	Department string
	ManagerID  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

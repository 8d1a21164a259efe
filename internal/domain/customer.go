package domain

import (
	"github.com/google/uuid"
)

// CustomerProfile is owned by the intake system and only read here
type CustomerProfile struct {
	ID        uuid.UUID `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Phone     string    `json:"phone" db:"phone"`
	Email     string    `json:"email" db:"email"`
	Address   string    `json:"address" db:"address"`
}

// Operator is the shop employee acting on a loan
type Operator struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// SystemOperator attributes writes made by scheduled jobs
var SystemOperator = Operator{ID: "system", Username: "system"}

// Package roster provides the durable table of on-call personnel.
package roster

import "time"

// Person is a roster entry eligible to be designated on-call.
type Person struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

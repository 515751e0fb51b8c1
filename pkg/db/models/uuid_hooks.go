package models

import "github.com/google/uuid"

// ensureID assigns a random UUID when the primary key is still zero so the
// models insert the same way on Postgres and SQLite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

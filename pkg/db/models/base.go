package models

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the caller did not pick one. Postgres
// would fill the column default, but SQLite has no gen_random_uuid().
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

package store

import (
	"context"
)

// CreateUserLibraryAssociation grants userID role on libraryID. Duplicate
// grants surface as Conflict via the association's composite primary key.
func (s *Store) CreateUserLibraryAssociation(ctx context.Context, a UserLibraryAssociation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_library_association (user_id, library_id, role)
		VALUES ($1, $2, $3)`,
		a.UserID, a.LibraryID, a.Role)
	if err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

// ListLibrariesForUser returns the library ids userID may read or
// administer, used at the API boundary to scope search and
// administration (section 3: "Used only to scope search and
// administration; enforced at the API boundary.").
func (s *Store) ListLibrariesForUser(ctx context.Context, userID string) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT library_id FROM user_library_association WHERE user_id = $1`, userID)
	if err != nil {
		return nil, classifyWriteErr(err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, classifyWriteErr(err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// UserRole returns the role userID holds on libraryID, or ErrNotFound if
// no association exists.
func (s *Store) UserRole(ctx context.Context, userID string, libraryID int64) (string, error) {
	var role string
	row := s.pool.QueryRow(ctx, `
		SELECT role FROM user_library_association WHERE user_id = $1 AND library_id = $2`,
		userID, libraryID)
	if err := row.Scan(&role); err != nil {
		return "", classifyWriteErr(err)
	}
	return role, nil
}

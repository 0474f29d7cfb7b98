package db

import "github.com/google/uuid"

// GenerateID returns an identifier of the form "prefix_uuid". The prefix
// makes IDs self-describing in logs and foreign keys.
func GenerateID(prefix string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return prefix + "_" + id.String(), nil
}

package services

import (
	"errors"
	"fmt"

	"github.com/hanko-field/catalog/internal/repositories"
)

var (
	// ErrProductInvalidInput indicates the caller supplied a malformed command or payload.
	ErrProductInvalidInput = errors.New("product service: invalid input")
	// ErrProductPermissionDenied indicates the caller may not perform the operation.
	ErrProductPermissionDenied = errors.New("product service: permission denied")
	// ErrProductNotFound indicates the addressed record does not exist in the shop.
	ErrProductNotFound = errors.New("product service: product not found")
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProductInvalidInput, fmt.Sprintf(format, args...))
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// translateRepoError maps missing records onto ErrProductNotFound and passes every other
// storage failure through unchanged.
func translateRepoError(err error, id string) error {
	if err == nil {
		return nil
	}
	if isRepoNotFound(err) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return err
}

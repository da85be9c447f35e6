package survey

import (
	"fmt"

	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/persistence/database"
)

// storageFailure wraps err for op, marking lock timeouts with ErrBusy.
func storageFailure(op string, err error) error {
	if err != nil && database.IsBusy(err) {
		err = fmt.Errorf("%w: %w", survey.ErrBusy, err)
	}
	return survey.StorageError(op, err)
}

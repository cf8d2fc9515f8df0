package service

import (
	"context"
	"errors"

	"hey-chat/internal/domain"
	"hey-chat/internal/repository"
)

const maxWriteAttempts = 3

// errNoChange corta la escritura sin error cuando la mutacion no tiene nada que guardar.
var errNoChange = errors.New("no change")

// mutateAccount aplica mutate y guarda; si otro escritor gano la carrera relee la
// cuenta y vuelve a aplicar mutate, que debe revalidar sus precondiciones.
func mutateAccount(
	ctx context.Context,
	accounts repository.AccountRepository,
	account domain.Account,
	mutate func(*domain.Account) error,
) (domain.Account, error) {
	for attempt := 1; ; attempt++ {
		if err := mutate(&account); err != nil {
			if errors.Is(err, errNoChange) {
				return account, nil
			}
			return domain.Account{}, err
		}
		saved, err := accounts.Save(ctx, account)
		if !errors.Is(err, domain.ErrStaleAccount) || attempt == maxWriteAttempts {
			return saved, err
		}
		account, err = accounts.GetByID(ctx, account.ID)
		if err != nil {
			return domain.Account{}, err
		}
	}
}

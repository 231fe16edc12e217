package services

import (
	"errors"

	"github.com/pointgrid/loyalty-core/internal/repository"
)

// Repository sentinels are translated once, here, so handlers only ever see
// service errors.

func mapEndUserErr(err error) error {
	if errors.Is(err, repository.ErrEndUserNotFound) {
		return ErrEndUserNotFound
	}
	return err
}

func mapMerchantErr(err error) error {
	if errors.Is(err, repository.ErrMerchantNotFound) {
		return ErrMerchantNotFound
	}
	return err
}

func mapClientErr(err error) error {
	if errors.Is(err, repository.ErrClientNotFound) {
		return ErrClientNotFound
	}
	return err
}

func mapVoucherErr(err error) error {
	if errors.Is(err, repository.ErrVoucherNotFound) {
		return ErrVoucherNotFound
	}
	return err
}

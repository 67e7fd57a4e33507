package component

import "errors"

var (
	ErrUnknownService     = errors.New("component: unknown service")
	ErrEntityNotFound     = errors.New("component: entity not found")
	ErrEntityExists       = errors.New("component: entity already exists")
	ErrEntryNotFound      = errors.New("component: config entry not found")
	ErrEntryExists        = errors.New("component: config entry already exists")
	ErrInvalidEntry       = errors.New("component: invalid config entry")
	ErrInvalidServiceData = errors.New("component: invalid service data")
)

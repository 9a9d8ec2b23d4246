package domain

import "errors"

var (
	// ErrNoTenant means the host is the bare base domain: no tenant context.
	ErrNoTenant = errors.New("no tenant for host")
	// ErrTenantNotFound means the subdomain does not map to an organization.
	ErrTenantNotFound = errors.New("tenant not found")
	ErrSubdomainTaken = errors.New("subdomain already taken")
	ErrSubdomainReserved = errors.New("subdomain is reserved")
	ErrAlreadyConfigured = errors.New("organization already configured")
	ErrOrganizationNotFound = errors.New("organization not found")
)

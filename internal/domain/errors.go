package domain

import "errors"

var (
	ErrInvalidURL         = errors.New("invalid URL")
	ErrMissingSelector    = errors.New("required selector is empty")
	ErrInvalidSelector    = errors.New("invalid selector")
	ErrContainerNotFound  = errors.New("menu container not found")
	ErrEmptyPage          = errors.New("page content is empty")
	ErrNoSessionData      = errors.New("no crawled data in session, crawl first")
	ErrUnsupportedFormat  = errors.New("unsupported export format")
	ErrDisallowedByRobots = errors.New("disallowed by robots.txt")
)

package errors

import (
	"errors"
	"fmt"
)

var NotFound = errors.New("not found")

var AlreadyExists = errors.New("already exists")

// ScrapeFailure is returned when the source could not be fetched or its reference is malformed.
// It aborts the current pipeline run for the product.
type ScrapeFailure struct {
	Ref string
	Err error
}

func (e *ScrapeFailure) Error() string {
	return fmt.Sprintf("scrape %s: %v", e.Ref, e.Err)
}

func (e *ScrapeFailure) Unwrap() error {
	return e.Err
}

func NewScrapeFailure(ref string, err error) error {
	return &ScrapeFailure{Ref: ref, Err: err}
}

// ClassificationFailure is returned by a classifier on transport or provider errors.
// Ingestion logs it and keeps the affected reviews at their default sentiment.
type ClassificationFailure struct {
	Err error
}

func (e *ClassificationFailure) Error() string {
	return fmt.Sprintf("classify: %v", e.Err)
}

func (e *ClassificationFailure) Unwrap() error {
	return e.Err
}

func NewClassificationFailure(err error) error {
	return &ClassificationFailure{Err: err}
}

func IsScrapeFailure(err error) bool {
	var sf *ScrapeFailure
	return errors.As(err, &sf)
}

func IsClassificationFailure(err error) bool {
	var cf *ClassificationFailure
	return errors.As(err, &cf)
}

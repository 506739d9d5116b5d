package service

import "errors"

var (
	// ErrDatabaseNotFound means the referenced db key has no registered source.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrCollectionEmpty means the source collection has zero documents.
	// A no-op outcome rather than a failure.
	ErrCollectionEmpty = errors.New("collection is empty")

	// ErrSyncInProgress means another sync already holds the lock for the
	// same (db key, collection) pair.
	ErrSyncInProgress = errors.New("sync already in progress for this collection")

	// ErrNoTextFields means no text fields were provided and auto-detection
	// found nothing embeddable in a sample document.
	ErrNoTextFields = errors.New("no text fields found to vectorize")
)

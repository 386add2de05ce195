package repository

import "context"

// DocumentStore is the narrow persistence contract the core depends on:
// get/put/delete of JSON documents over named collections. Callers own
// the collection names; the store owns nothing but bytes.
type DocumentStore interface {
	Put(ctx context.Context, collection, id string, doc any) error
	Get(ctx context.Context, collection, id string, out any) error
	Delete(ctx context.Context, collection, id string) error
}

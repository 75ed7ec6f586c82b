package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

// Codec converts between a domain value and its Firestore document shape D.
type Codec[T, D any] struct {
	Encode func(T) D
	Decode func(id string, doc D) T
}

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// Collection provides typed access to one collection. Every method has a transactional twin
// taking *firestore.Transaction.
type Collection[T, D any] struct {
	provider *Provider
	name     string
	codec    Codec[T, D]
}

// NewCollection binds a typed collection to the provider.
func NewCollection[T, D any](provider *Provider, name string, codec Codec[T, D]) *Collection[T, D] {
	return &Collection[T, D]{provider: provider, name: strings.TrimSpace(name), codec: codec}
}

// Name returns the collection name.
func (c *Collection[T, D]) Name() string { return c.name }

// Ref returns the document reference for id.
func (c *Collection[T, D]) Ref(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, repositories.NewNotFoundError(c.op("ref"), errors.New("document id is required"))
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name).Doc(id), nil
}

// Get loads and decodes the document.
func (c *Collection[T, D]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return zero, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return zero, WrapError(c.op("get"), err)
	}
	return c.decode(snap)
}

// GetTx loads and decodes the document inside a transaction.
func (c *Collection[T, D]) GetTx(tx *firestore.Transaction, ref *firestore.DocumentRef) (T, error) {
	var zero T
	snap, err := tx.Get(ref)
	if err != nil {
		return zero, WrapError(c.op("get"), err)
	}
	return c.decode(snap)
}

// Create writes a new document and reports a conflict when it already exists.
func (c *Collection[T, D]) Create(ctx context.Context, id string, value T) error {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, c.codec.Encode(value)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return repositories.NewConflictError(c.op("create"), fmt.Errorf("%s already exists", id))
		}
		return WrapError(c.op("create"), err)
	}
	return nil
}

// Set upserts the document.
func (c *Collection[T, D]) Set(ctx context.Context, id string, value T) error {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, c.codec.Encode(value)); err != nil {
		return WrapError(c.op("set"), err)
	}
	return nil
}

// SetTx upserts the document inside a transaction.
func (c *Collection[T, D]) SetTx(tx *firestore.Transaction, ref *firestore.DocumentRef, value T) error {
	return WrapError(c.op("set"), tx.Set(ref, c.codec.Encode(value)))
}

// Query runs the built query and decodes every document.
func (c *Collection[T, D]) Query(ctx context.Context, build QueryBuilder) ([]T, error) {
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	query := client.Collection(c.name).Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []T
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		value, err := c.decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
}

// Count runs a server-side count aggregation over the built query.
func (c *Collection[T, D]) Count(ctx context.Context, build QueryBuilder) (int64, error) {
	client, err := c.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	query := client.Collection(c.name).Query
	if build != nil {
		query = build(query)
	}
	result, err := query.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, WrapError(c.op("count"), err)
	}
	return aggregateInt(result["total"])
}

func (c *Collection[T, D]) decode(snap *firestore.DocumentSnapshot) (T, error) {
	var zero T
	var doc D
	if err := snap.DataTo(&doc); err != nil {
		return zero, fmt.Errorf("%s: decode %s: %w", c.op("decode"), snap.Ref.ID, err)
	}
	return c.codec.Decode(snap.Ref.ID, doc), nil
}

func (c *Collection[T, D]) op(action string) string {
	return c.name + "." + action
}

func aggregateInt(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case interface{ GetIntegerValue() int64 }:
		return v.GetIntegerValue(), nil
	default:
		return 0, fmt.Errorf("firestore: unexpected aggregation value %T", value)
	}
}

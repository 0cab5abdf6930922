/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	storeerrors "github.com/suparena/eserp/errors"
)

// RetryOptions controls paging and retries of Query calls.
type RetryOptions struct {
	// PageSize is the DynamoDB Limit of each page.
	PageSize int32
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// RetryBackoff grows linearly with the attempt number.
	RetryBackoff time.Duration
}

// DefaultRetryOptions returns the paging policy used when none is given.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		PageSize:     100,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
	}
}

// queryAll follows LastEvaluatedKey until the partition is exhausted.
func (d *Store[T]) queryAll(ctx context.Context, input *sdk.QueryInput) ([]map[string]types.AttributeValue, error) {
	if d.retry.PageSize > 0 {
		input.Limit = aws.Int32(d.retry.PageSize)
	}

	var items []map[string]types.AttributeValue
	pageNumber := 0
	for {
		out, err := d.queryWithRetry(ctx, input)
		if err != nil {
			return nil, err
		}
		pageNumber++
		items = append(items, out.Items...)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	d.logger.Debug("dynamodb query complete", "table", d.tableName, "pages", pageNumber, "items", len(items))
	return items, nil
}

// queryWithRetry executes a query with configurable retry logic
func (d *Store[T]) queryWithRetry(ctx context.Context, input *sdk.QueryInput) (*sdk.QueryOutput, error) {
	var lastErr error

	for attempt := 0; attempt <= d.retry.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		out, err := d.client.Query(ctx, input)
		if err == nil {
			return out, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			return nil, wrapError("Query", err)
		}

		if attempt < d.retry.MaxRetries {
			backoff := time.Duration(attempt+1) * d.retry.RetryBackoff
			d.logger.Warn("dynamodb query retry", "table", d.tableName, "attempt", attempt+1, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, storeerrors.NewUpstreamUnavailableError(backendName,
		fmt.Errorf("query failed after %d retries: %w", d.retry.MaxRetries, lastErr))
}

// isRetryableError determines if a DynamoDB error is retryable
func isRetryableError(err error) bool {
	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		internal   *types.InternalServerError
	)
	if errors.As(err, &throughput) || errors.As(err, &limit) || errors.As(err, &internal) {
		return true
	}

	var retryable interface{ IsRetryable() bool }
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// wrapError classifies a failed DynamoDB call. Throttling, server faults and
// network failures become UpstreamUnavailable; anything else keeps its cause.
func wrapError(op string, err error) error {
	if isRetryableError(err) {
		return storeerrors.NewUpstreamUnavailableError(backendName, fmt.Errorf("%s: %w", op, err))
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return storeerrors.NewUpstreamUnavailableError(backendName, fmt.Errorf("%s: %w", op, err))
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultServer {
		return storeerrors.NewUpstreamUnavailableError(backendName, fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/eserp/datastore/eval"
	storeerrors "github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/storagemodels"
)

// Query reads the single partition pinned by the filter and evaluates the rest
// of params in memory. The filter must fix, by text equality, every attribute
// the PK template references; a query that would need a table scan is
// rejected with a ValidationError.
func (d *Store[T]) Query(ctx context.Context, params *storagemodels.QueryParams) ([]T, error) {
	items, err := d.partition(ctx, params)
	if err != nil {
		return nil, err
	}
	return eval.Apply(items, params), nil
}

// Distinct returns the distinct text values at path among the matching items.
func (d *Store[T]) Distinct(ctx context.Context, path string, params *storagemodels.QueryParams) ([]string, error) {
	items, err := d.partition(ctx, params)
	if err != nil {
		return nil, err
	}
	return eval.Distinct(items, path, params), nil
}

func (d *Store[T]) partition(ctx context.Context, params *storagemodels.QueryParams) ([]T, error) {
	input, err := d.buildQueryInput(params)
	if err != nil {
		return nil, err
	}

	raw, err := d.queryAll(ctx, input)
	if err != nil {
		return nil, err
	}

	results := make([]T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := attributevalue.UnmarshalMap(item, &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item: %w", err)
		}
		results = append(results, v)
	}
	return results, nil
}

// buildQueryInput turns the equality predicates of params into a key
// condition: an exact PK plus a begins_with on the resolvable SK prefix.
func (d *Store[T]) buildQueryInput(params *storagemodels.QueryParams) (*sdk.QueryInput, error) {
	var eq map[string]string
	if params != nil {
		eq = params.Filter.Equalities()
	}
	av, err := keyAttributes(eq)
	if err != nil {
		return nil, err
	}

	expanded, missing := expandMacros(map[string]string{"PK": d.indexMap["PK"]}, av)
	if len(missing) > 0 {
		return nil, storeerrors.NewValidationError("filter", fmt.Sprintf("partition key requires equality on %v", missing))
	}

	keyCond := "PK = :pk"
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: expanded["PK"]},
	}
	if prefix := sortKeyPrefix(d.indexMap["SK"], av); prefix != "" {
		keyCond += " AND begins_with(SK, :sk)"
		values[":sk"] = &types.AttributeValueMemberS{Value: prefix}
	}

	return &sdk.QueryInput{
		TableName:                 aws.String(d.tableName),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeValues: values,
	}, nil
}

// sortKeyPrefix expands the SK template up to its first unresolved macro.
func sortKeyPrefix(template string, av map[string]types.AttributeValue) string {
	var b strings.Builder
	rest := template
	for {
		loc := macroPattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:loc[0]])
		name := rest[loc[2]:loc[3]]
		s, ok := av[name].(*types.AttributeValueMemberS)
		if !ok {
			return b.String()
		}
		b.WriteString(s.Value)
		rest = rest[loc[1]:]
	}
}

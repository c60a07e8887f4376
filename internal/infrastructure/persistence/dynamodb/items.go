package dynamodb

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ozadari/unipop/internal/domain/graph"
	"github.com/ozadari/unipop/internal/repository"
)

// ============================================================================
// ITEM PARSING
// ============================================================================

// toItem flattens a record into one item; the identifier is the partition key.
func toItem(rec repository.Record) (map[string]types.AttributeValue, error) {
	doc := rec.Document(graph.FieldID, graph.FieldLabel)
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal item %s: %w", rec.ID, err)
	}
	return item, nil
}

// toDocument unmarshals an item into a flat document.
func toDocument(item map[string]types.AttributeValue) (map[string]any, error) {
	doc := make(map[string]any, len(item))
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return doc, nil
}

// fromItem is the inverse of toItem.
func fromItem(item map[string]types.AttributeValue) (repository.Record, error) {
	doc, err := toDocument(item)
	if err != nil {
		return repository.Record{}, err
	}
	id, _ := doc[graph.FieldID].(string)
	if id == "" {
		return repository.Record{}, fmt.Errorf("item without %s attribute", graph.FieldID)
	}
	label, _ := doc[graph.FieldLabel].(string)
	delete(doc, graph.FieldID)
	delete(doc, graph.FieldLabel)
	return repository.Record{ID: id, Label: label, Fields: doc}, nil
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		graph.FieldID: &types.AttributeValueMemberS{Value: id},
	}
}

// encodeKey renders a LastEvaluatedKey as an opaque cursor. Only string key
// attributes are supported, which is all the table schema uses.
func encodeKey(key map[string]types.AttributeValue) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	plain := make(map[string]string, len(key))
	for name, av := range key {
		s, ok := av.(*types.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("unsupported key attribute %s of type %T", name, av)
		}
		plain[name] = s.Value
	}
	return repository.EncodeCursor(plain)
}

func decodeKey(cursor string) (map[string]types.AttributeValue, error) {
	var plain map[string]string
	if err := repository.DecodeCursor(cursor, &plain); err != nil {
		return nil, err
	}
	key := make(map[string]types.AttributeValue, len(plain))
	for name, v := range plain {
		key[name] = &types.AttributeValueMemberS{Value: v}
	}
	return key, nil
}

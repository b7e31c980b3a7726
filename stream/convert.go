package stream

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/origami/store"
)

// ConvertImage converts a DynamoDB stream image to a record. Numbers become
// int64 when integral and float64 otherwise. A nil image yields a nil record.
func ConvertImage(image map[string]events.DynamoDBAttributeValue) (store.Record, error) {
	if image == nil {
		return nil, nil
	}
	rec := make(store.Record, len(image))
	for k, v := range image {
		value, err := convertValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		rec[k] = value
	}
	return rec, nil
}

func convertValue(v events.DynamoDBAttributeValue) (any, error) {
	switch v.DataType() {
	case events.DataTypeString:
		return v.String(), nil
	case events.DataTypeNumber:
		return parseNumber(v.Number())
	case events.DataTypeBinary:
		return v.Binary(), nil
	case events.DataTypeBoolean:
		return v.Boolean(), nil
	case events.DataTypeNull:
		return nil, nil
	case events.DataTypeList:
		list := v.List()
		out := make([]any, len(list))
		for i, item := range list {
			value, err := convertValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = value
		}
		return out, nil
	case events.DataTypeMap:
		m := v.Map()
		out := make(map[string]any, len(m))
		for k, item := range m {
			value, err := convertValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = value
		}
		return out, nil
	case events.DataTypeStringSet:
		return v.StringSet(), nil
	case events.DataTypeNumberSet:
		set := v.NumberSet()
		out := make([]any, len(set))
		for i, n := range set {
			value, err := parseNumber(n)
			if err != nil {
				return nil, err
			}
			out[i] = value
		}
		return out, nil
	case events.DataTypeBinarySet:
		return v.BinarySet(), nil
	}
	return nil, fmt.Errorf("unsupported attribute type %v", v.DataType())
}

func parseNumber(s string) (any, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", s, err)
	}
	return f, nil
}

// ConvertStreamKey converts a DynamoDB stream key to SDK attribute values.
// Use this when you need to convert keys from stream records to table operations.
func ConvertStreamKey(streamKey map[string]events.DynamoDBAttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	for k, v := range streamKey {
		switch v.DataType() {
		case events.DataTypeString:
			result[k] = &types.AttributeValueMemberS{Value: v.String()}
		case events.DataTypeNumber:
			result[k] = &types.AttributeValueMemberN{Value: v.Number()}
		case events.DataTypeBinary:
			result[k] = &types.AttributeValueMemberB{Value: v.Binary()}
		}
	}
	return result
}

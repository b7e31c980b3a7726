package dynamo

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/origami/store"
)

// NotDeletedCondition returns the condition expression matching items without
// a soft delete timestamp. Use with NotDeletedNames and NotDeletedValues.
func NotDeletedCondition() string {
	return "attribute_not_exists(#deletedAt) OR attribute_type(#deletedAt, :null)"
}

// NotDeletedNames returns expression attribute names for NotDeletedCondition.
func NotDeletedNames() map[string]string {
	return map[string]string{"#deletedAt": store.DeletedAtField}
}

// NotDeletedValues returns expression attribute values for NotDeletedCondition.
func NotDeletedValues() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":null": &types.AttributeValueMemberS{Value: "NULL"},
	}
}

// expression is a filter, condition or update expression with its placeholders.
type expression struct {
	expr   string
	names  map[string]string
	values map[string]types.AttributeValue
}

// filterFor builds a scan filter from an equality query. Keys are visited in
// sorted order so equal queries yield equal expressions. A nil value matches
// a missing or NULL attribute.
func filterFor(q store.Query) (expression, error) {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e := expression{
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
	}
	var clauses []string
	for i, k := range keys {
		name := fmt.Sprintf("#f%d", i)
		e.names[name] = k

		if q[k] == nil {
			e.values[":null"] = NotDeletedValues()[":null"]
			clauses = append(clauses, fmt.Sprintf("(attribute_not_exists(%s) OR attribute_type(%s, :null))", name, name))
			continue
		}

		av, err := attributevalue.Marshal(q[k])
		if err != nil {
			return expression{}, fmt.Errorf("marshal query field %q: %w", k, err)
		}
		value := fmt.Sprintf(":f%d", i)
		e.values[value] = av
		clauses = append(clauses, fmt.Sprintf("%s = %s", name, value))
	}
	e.expr = joinStrings(clauses, " AND ")
	return e, nil
}

// updateFor builds a SET expression from set. The id attribute is the table
// key and is never written.
func updateFor(set store.Record) (expression, error) {
	keys := make([]string, 0, len(set))
	for k := range set {
		if k == "id" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e := expression{
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
	}
	var clauses []string
	for i, k := range keys {
		av, err := attributevalue.Marshal(set[k])
		if err != nil {
			return expression{}, fmt.Errorf("marshal field %q: %w", k, err)
		}
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		e.names[nameKey] = k
		e.values[valueKey] = av
		clauses = append(clauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}
	if len(clauses) > 0 {
		e.expr = "SET " + joinStrings(clauses, ", ")
	}
	return e, nil
}

// mergeExprNames merges multiple expression attribute name maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// mergeExprValues merges multiple expression attribute value maps.
func mergeExprValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for _, s := range strs[1:] {
		result += sep + s
	}
	return result
}

func nilIfEmpty[M ~map[K]V, K comparable, V any](m M) M {
	if len(m) == 0 {
		return nil
	}
	return m
}

// Where: internal/ledger/dynamodb.go
// What: AWS SDK adapter for the ledger table.
// Why: Map ledger types to DynamoDB SDK inputs.
package ledger

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the SDK method set used by the adapter.
type DynamoAPI interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Dynamo implements API over the SDK client.
type Dynamo struct {
	Client DynamoAPI
}

// NewDynamo wraps client.
func NewDynamo(client DynamoAPI) Dynamo {
	return Dynamo{Client: client}
}

func (d Dynamo) ListTables(ctx context.Context) ([]string, error) {
	if d.Client == nil {
		return nil, fmt.Errorf("dynamodb client is nil")
	}
	names := []string{}
	input := &dynamodb.ListTablesInput{}
	for {
		resp, err := d.Client.ListTables(ctx, input)
		if err != nil {
			return nil, err
		}
		names = append(names, resp.TableNames...)
		if resp.LastEvaluatedTableName == nil {
			return names, nil
		}
		input = &dynamodb.ListTablesInput{ExclusiveStartTableName: resp.LastEvaluatedTableName}
	}
}

func (d Dynamo) CreateTable(ctx context.Context, spec TableSpec) error {
	if d.Client == nil {
		return fmt.Errorf("dynamodb client is nil")
	}
	_, err := d.Client.CreateTable(ctx, buildCreateTableInput(spec))
	return err
}

func buildCreateTableInput(spec TableSpec) *dynamodb.CreateTableInput {
	keySchema := []types.KeySchemaElement{{
		AttributeName: aws.String(spec.HashKey),
		KeyType:       types.KeyTypeHash,
	}}
	attrDefs := []types.AttributeDefinition{{
		AttributeName: aws.String(spec.HashKey),
		AttributeType: types.ScalarAttributeTypeS,
	}}
	if spec.RangeKey != "" {
		keySchema = append(keySchema, types.KeySchemaElement{
			AttributeName: aws.String(spec.RangeKey),
			KeyType:       types.KeyTypeRange,
		})
		attrDefs = append(attrDefs, types.AttributeDefinition{
			AttributeName: aws.String(spec.RangeKey),
			AttributeType: types.ScalarAttributeTypeS,
		})
	}
	return &dynamodb.CreateTableInput{
		TableName:            aws.String(spec.Name),
		KeySchema:            keySchema,
		AttributeDefinitions: attrDefs,
		BillingMode:          types.BillingModePayPerRequest,
	}
}

func (d Dynamo) PutItem(ctx context.Context, table string, item map[string]string) error {
	if d.Client == nil {
		return fmt.Errorf("dynamodb client is nil")
	}
	attrs := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		if v == "" {
			continue
		}
		attrs[k] = &types.AttributeValueMemberS{Value: v}
	}
	_, err := d.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      attrs,
	})
	return err
}
